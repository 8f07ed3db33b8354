package control

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the control tasks use. Historical firmware
// builds of the platform differed only in these values, so a build is
// just a Config; DefaultConfig is the competition tune.
type Config struct {
	// Speed setpoints in motor-driver units (-100..100).
	StopSpeed    int `mapstructure:"stop_speed" yaml:"stop_speed"`
	LowSpeed     int `mapstructure:"low_speed" yaml:"low_speed"`
	MediumSpeed  int `mapstructure:"medium_speed" yaml:"medium_speed"`
	ReverseSpeed int `mapstructure:"reverse_speed" yaml:"reverse_speed"`

	// LightThreshold is the reading above which a light marker counts
	// as detected (0..100).
	LightThreshold int `mapstructure:"light_threshold" yaml:"light_threshold"`

	// Task periods.
	NavPeriod       time.Duration `mapstructure:"nav_period" yaml:"nav_period"`
	MotorPeriod     time.Duration `mapstructure:"motor_period" yaml:"motor_period"`
	CollisionPeriod time.Duration `mapstructure:"collision_period" yaml:"collision_period"`
	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period" yaml:"heartbeat_period"`

	// Obstacle recovery phase lengths, counted in collision-task ticks.
	// The counter only advances while the way ahead is clear.
	BackupTicks int `mapstructure:"backup_ticks" yaml:"backup_ticks"`
	TurnTicks   int `mapstructure:"turn_ticks" yaml:"turn_ticks"`
	SeekTicks   int `mapstructure:"seek_ticks" yaml:"seek_ticks"`

	// BarPause is how long the robot holds still on a full-bar reading
	// before rolling on.
	BarPause time.Duration `mapstructure:"bar_pause" yaml:"bar_pause"`

	// Extra settling delays appended to a navigation cycle: after a
	// recovery move with the line still lost, and after a gentle-turn
	// correction.
	RecoveryDelay   time.Duration `mapstructure:"recovery_delay" yaml:"recovery_delay"`
	GentleTurnDelay time.Duration `mapstructure:"gentle_turn_delay" yaml:"gentle_turn_delay"`

	// Timed legs of the return-to-track maneuver at the second light
	// marker.
	ManeuverReverse time.Duration `mapstructure:"maneuver_reverse" yaml:"maneuver_reverse"`
	ManeuverTurn    time.Duration `mapstructure:"maneuver_turn" yaml:"maneuver_turn"`
}

// DefaultConfig returns the competition tune.
func DefaultConfig() Config {
	return Config{
		StopSpeed:    0,
		LowSpeed:     30,
		MediumSpeed:  50,
		ReverseSpeed: -30,

		LightThreshold: 70,

		NavPeriod:       100 * time.Millisecond,
		MotorPeriod:     100 * time.Millisecond,
		CollisionPeriod: 100 * time.Millisecond,
		HeartbeatPeriod: 5 * time.Second,

		BackupTicks: 10,
		TurnTicks:   15,
		SeekTicks:   20,

		BarPause:        200 * time.Millisecond,
		RecoveryDelay:   50 * time.Millisecond,
		GentleTurnDelay: 20 * time.Millisecond,

		ManeuverReverse: 1 * time.Second,
		ManeuverTurn:    1500 * time.Millisecond,
	}
}

// WithLightThreshold returns a copy of c with the marker threshold set.
func (c Config) WithLightThreshold(v int) Config {
	c.LightThreshold = v
	return c
}

// WithSpeeds returns a copy of c with the three forward setpoints and
// the reverse setpoint replaced.
func (c Config) WithSpeeds(low, medium, reverse int) Config {
	c.LowSpeed = low
	c.MediumSpeed = medium
	c.ReverseSpeed = reverse
	return c
}

// WithBasicRecovery returns a copy of c tuned close to the old
// single-flag behavior: a normal back-up, with the turn and seek legs
// collapsed to a single cycle each.
func (c Config) WithBasicRecovery() Config {
	c.TurnTicks = 0
	c.SeekTicks = 0
	return c
}

// Validate reports the first problem with c, or nil.
func (c Config) Validate() error {
	inRange := func(v int) bool { return v >= -100 && v <= 100 }
	for _, s := range []struct {
		name string
		v    int
	}{
		{"stop_speed", c.StopSpeed},
		{"low_speed", c.LowSpeed},
		{"medium_speed", c.MediumSpeed},
		{"reverse_speed", c.ReverseSpeed},
	} {
		if !inRange(s.v) {
			return fmt.Errorf("%s %d outside -100..100", s.name, s.v)
		}
	}
	if c.LowSpeed <= 0 || c.MediumSpeed <= 0 {
		return fmt.Errorf("forward speeds must be positive (low %d, medium %d)", c.LowSpeed, c.MediumSpeed)
	}
	if c.ReverseSpeed >= 0 {
		return fmt.Errorf("reverse_speed %d must be negative", c.ReverseSpeed)
	}
	if c.LightThreshold < 0 || c.LightThreshold > 100 {
		return fmt.Errorf("light_threshold %d outside 0..100", c.LightThreshold)
	}
	for _, p := range []struct {
		name string
		v    time.Duration
	}{
		{"nav_period", c.NavPeriod},
		{"motor_period", c.MotorPeriod},
		{"collision_period", c.CollisionPeriod},
		{"heartbeat_period", c.HeartbeatPeriod},
	} {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.v)
		}
	}
	if c.BackupTicks < 0 || c.TurnTicks < 0 || c.SeekTicks < 0 {
		return fmt.Errorf("recovery tick counts must not be negative")
	}
	if c.BarPause < 0 || c.RecoveryDelay < 0 || c.GentleTurnDelay < 0 {
		return fmt.Errorf("pause durations must not be negative")
	}
	if c.ManeuverReverse < 0 || c.ManeuverTurn < 0 {
		return fmt.Errorf("maneuver durations must not be negative")
	}
	return nil
}

// LoadFile overlays values from a YAML tuning file onto c. Keys absent
// from the file keep their current values.
func (c Config) LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return c, fmt.Errorf("read tuning file: %w", err)
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return c, nil
}
