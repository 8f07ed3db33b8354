package config

import "testing"

func TestDefaults(t *testing.T) {
	t.Setenv("ROBOKAR_BOARD", "")
	t.Setenv("ROBOKAR_SERIAL_PORT", "")
	t.Setenv("ROBOKAR_SERIAL_BAUD", "")

	if got := Board(); got != DefaultBoard {
		t.Errorf("Board() = %q, want %q", got, DefaultBoard)
	}
	if got := SerialPort(); got != DefaultSerialPort {
		t.Errorf("SerialPort() = %q, want %q", got, DefaultSerialPort)
	}
	if got := SerialBaud(); got != DefaultSerialBaud {
		t.Errorf("SerialBaud() = %d, want %d", got, DefaultSerialBaud)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROBOKAR_BOARD", "serial")
	t.Setenv("ROBOKAR_SERIAL_PORT", "/dev/ttyACM3")
	t.Setenv("ROBOKAR_SERIAL_BAUD", "57600")
	t.Setenv("ROBOKAR_LOG", "debug")

	if got := Board(); got != "serial" {
		t.Errorf("Board() = %q", got)
	}
	if got := SerialPort(); got != "/dev/ttyACM3" {
		t.Errorf("SerialPort() = %q", got)
	}
	if got := SerialBaud(); got != 57600 {
		t.Errorf("SerialBaud() = %d", got)
	}
	if got := LogLevel("info"); got != "debug" {
		t.Errorf("LogLevel() = %q", got)
	}
}

func TestBadBaudFallsBack(t *testing.T) {
	t.Setenv("ROBOKAR_SERIAL_BAUD", "fast")
	if got := SerialBaud(); got != DefaultSerialBaud {
		t.Errorf("SerialBaud() = %d, want default on junk", got)
	}
}
