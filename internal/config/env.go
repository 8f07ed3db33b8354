// Package config provides environment configuration helpers for go-robokar commands.
package config

import (
	"os"
	"strconv"
)

// Default board configuration.
const (
	DefaultBoard      = "sim"
	DefaultSerialPort = "/dev/ttyUSB0"
	DefaultSerialBaud = 115200
)

// Board returns the board kind from the ROBOKAR_BOARD env var
// ("sim", "serial" or "grove"). Falls back to DefaultBoard.
func Board() string {
	if b := os.Getenv("ROBOKAR_BOARD"); b != "" {
		return b
	}
	return DefaultBoard
}

// SerialPort returns the co-processor serial device from ROBOKAR_SERIAL_PORT.
func SerialPort() string {
	if p := os.Getenv("ROBOKAR_SERIAL_PORT"); p != "" {
		return p
	}
	return DefaultSerialPort
}

// SerialBaud returns the co-processor baud rate from ROBOKAR_SERIAL_BAUD.
func SerialBaud() int {
	if b := os.Getenv("ROBOKAR_SERIAL_BAUD"); b != "" {
		if v, err := strconv.Atoi(b); err == nil && v > 0 {
			return v
		}
	}
	return DefaultSerialBaud
}

// TrackPath returns the track definition file from ROBOKAR_TRACK.
// Empty means the built-in default track.
func TrackPath() string {
	return os.Getenv("ROBOKAR_TRACK")
}

// TuningPath returns the tuning overlay file from ROBOKAR_CONFIG.
// Empty means defaults only.
func TuningPath() string {
	return os.Getenv("ROBOKAR_CONFIG")
}

// LogLevel returns the log level from ROBOKAR_LOG or the given default.
func LogLevel(def string) string {
	if l := os.Getenv("ROBOKAR_LOG"); l != "" {
		return l
	}
	return def
}
