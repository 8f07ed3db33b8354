// Package hal provides the hardware interfaces for the RoboKar platform.
//
// The interfaces are kept small so control code can depend on exactly the
// pieces it touches; Board composes the full I/O surface of one robot.
// Sensor reads and actuator writes carry no error returns: the platform
// treats reads as always available and writes as fire-and-forget, and
// backends absorb transport faults internally (hold the last good value,
// count the fault, warn at a limited rate).
package hal

import (
	"context"
	"time"
)

// Line-sensor bit layout: bit 2 is the left element, bit 1 the middle,
// bit 0 the right. A reading of 7 means all three elements see tape.
const (
	LineBitRight  = 1 << 0
	LineBitMiddle = 1 << 1
	LineBitLeft   = 1 << 2

	// FullBar is the all-elements reading used as the checkpoint trigger.
	FullBar uint8 = LineBitLeft | LineBitMiddle | LineBitRight
)

// LineSensor reads the 3-bit under-track sensor array (0..7).
type LineSensor interface {
	ReadLine() uint8
}

// ProximitySensor reports whether an obstacle sits within range ahead.
type ProximitySensor interface {
	ReadProximity() bool
}

// LightSensor reads ambient light intensity on a 0..100 scale.
type LightSensor interface {
	ReadLight() int
}

// MotorDriver applies signed speed setpoints (-100..100) to the wheels.
type MotorDriver interface {
	SetMotorSpeeds(left, right int)
}

// Indicator controls the signal LED.
type Indicator interface {
	SetLED(on bool)
	ToggleLED()
}

// Horn emits an audible pulse train: pulses beeps separated by gap.
// The call must return without waiting for the train to finish.
type Horn interface {
	Sound(pulses int, gap time.Duration)
}

// StartButton blocks until the operator signals go or ctx is canceled.
type StartButton interface {
	WaitForStart(ctx context.Context) error
}

// Board is the composite interface for a complete robot I/O surface.
//
// Open prepares the underlying hardware and must leave the robot safe
// (motors stopped, LED off); Close releases it and does the same.
type Board interface {
	LineSensor
	ProximitySensor
	LightSensor
	MotorDriver
	Indicator
	Horn
	StartButton

	Open() error
	Close() error
}
