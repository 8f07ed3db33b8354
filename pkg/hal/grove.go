package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gobot.io/x/gobot/drivers/gpio"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/platforms/raspi"

	"github.com/robokar/go-robokar/internal/log"
)

const (
	groveWarnInterval = 5 * time.Second
	hornPulseWidth    = 100 * time.Millisecond
	hornQueueDepth    = 4
	analogFullScale   = 1023
)

var _ Board = (*GroveBoard)(nil)

// GrovePins maps the robot's wiring: sensors and signals on the
// GrovePi hat, the H-bridge on Raspberry Pi header pins.
type GrovePins struct {
	LineLeft   string // GrovePi digital
	LineMiddle string
	LineRight  string
	Proximity  string
	Button     string
	LED        string
	Buzzer     string
	Light      string // GrovePi analog

	LeftSpeed  string // Pi header, PWM
	LeftDir    string
	RightSpeed string
	RightDir   string
}

// DefaultGrovePins matches the classroom chassis wiring.
func DefaultGrovePins() GrovePins {
	return GrovePins{
		LineLeft:   "D2",
		LineMiddle: "D3",
		LineRight:  "D4",
		Proximity:  "D5",
		Button:     "D8",
		LED:        "D6",
		Buzzer:     "D7",
		Light:      "A0",

		LeftSpeed:  "12",
		LeftDir:    "16",
		RightSpeed: "33",
		RightDir:   "36",
	}
}

type hornTrain struct {
	pulses int
	gap    time.Duration
}

// GroveBoard drives a Raspberry Pi chassis: a GrovePi hat carries the
// line array, proximity and light sensors, the button, the LED and
// the buzzer; an H-bridge on the Pi header carries the wheels. Sensor
// faults fall back to the last good reading and are warned about at a
// limited rate.
type GroveBoard struct {
	pins    GrovePins
	adaptor *raspi.Adaptor
	grove   *i2c.GrovePiDriver
	left    *gpio.MotorDriver
	right   *gpio.MotorDriver

	mu       sync.Mutex
	led      bool
	line     uint8
	prox     bool
	light    int
	faults   int
	lastWarn time.Time

	hornCh     chan hornTrain
	hornCancel context.CancelFunc
	hornDone   chan struct{}
}

// NewGroveBoard builds the adaptor and drivers for the given wiring.
// Nothing touches the hardware until Open.
func NewGroveBoard(pins GrovePins) *GroveBoard {
	adaptor := raspi.NewAdaptor()
	left := gpio.NewMotorDriver(adaptor, pins.LeftSpeed)
	left.DirectionPin = pins.LeftDir
	right := gpio.NewMotorDriver(adaptor, pins.RightSpeed)
	right.DirectionPin = pins.RightDir
	return &GroveBoard{
		pins:    pins,
		adaptor: adaptor,
		grove:   i2c.NewGrovePiDriver(adaptor),
		left:    left,
		right:   right,
	}
}

// Open connects the adaptor, starts the drivers and leaves the robot
// safe.
func (b *GroveBoard) Open() error {
	if err := b.adaptor.Connect(); err != nil {
		return fmt.Errorf("connect raspi adaptor: %w", err)
	}
	if err := b.grove.Start(); err != nil {
		return fmt.Errorf("start grovepi driver: %w", err)
	}
	if err := b.left.Start(); err != nil {
		return fmt.Errorf("start left motor: %w", err)
	}
	if err := b.right.Start(); err != nil {
		return fmt.Errorf("start right motor: %w", err)
	}

	b.SetMotorSpeeds(0, 0)
	b.SetLED(false)

	ctx, cancel := context.WithCancel(context.Background())
	b.hornCancel = cancel
	b.hornCh = make(chan hornTrain, hornQueueDepth)
	b.hornDone = make(chan struct{})
	go b.hornLoop(ctx)

	log.Info("grove board up",
		"light_pin", b.pins.Light,
		"line_pins", fmt.Sprintf("%s/%s/%s", b.pins.LineLeft, b.pins.LineMiddle, b.pins.LineRight),
	)
	return nil
}

// Close parks the robot and releases the hardware.
func (b *GroveBoard) Close() error {
	if b.hornCancel != nil {
		b.hornCancel()
		<-b.hornDone
	}
	b.SetMotorSpeeds(0, 0)
	b.SetLED(false)
	b.left.Halt()
	b.right.Halt()
	b.grove.Halt()
	return b.adaptor.Finalize()
}

// fault counts a hardware problem and warns at a limited rate.
func (b *GroveBoard) fault(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults++
	if time.Since(b.lastWarn) >= groveWarnInterval {
		b.lastWarn = time.Now()
		log.Warn("grove board fault", "op", op, "err", err, "total", b.faults)
	}
}

// Faults returns how many hardware problems have been absorbed.
func (b *GroveBoard) Faults() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.faults
}

// ReadLine samples the three line elements into the 3-bit code.
func (b *GroveBoard) ReadLine() uint8 {
	var code uint8
	ok := true
	for _, el := range []struct {
		pin string
		bit uint8
	}{
		{b.pins.LineLeft, LineBitLeft},
		{b.pins.LineMiddle, LineBitMiddle},
		{b.pins.LineRight, LineBitRight},
	} {
		v, err := b.grove.DigitalRead(el.pin)
		if err != nil {
			b.fault("line read "+el.pin, err)
			ok = false
			break
		}
		if v != 0 {
			code |= el.bit
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !ok {
		return b.line
	}
	b.line = code
	return code
}

// ReadProximity samples the obstacle sensor, active high.
func (b *GroveBoard) ReadProximity() bool {
	v, err := b.grove.DigitalRead(b.pins.Proximity)
	if err != nil {
		b.fault("proximity read", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.prox
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prox = v != 0
	return b.prox
}

// ReadLight samples the analog light sensor, rescaled to 0..100.
func (b *GroveBoard) ReadLight() int {
	raw, err := b.grove.AnalogRead(b.pins.Light)
	if err != nil {
		b.fault("light read", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.light
	}
	v := raw * 100 / analogFullScale
	b.mu.Lock()
	defer b.mu.Unlock()
	b.light = clampLight(v)
	return b.light
}

// SetMotorSpeeds maps the signed setpoints onto direction pins and PWM
// duty.
func (b *GroveBoard) SetMotorSpeeds(left, right int) {
	b.setWheel(b.left, "left", left)
	b.setWheel(b.right, "right", right)
}

func (b *GroveBoard) setWheel(m *gpio.MotorDriver, name string, v int) {
	if v > 100 {
		v = 100
	}
	if v < -100 {
		v = -100
	}
	dir := "none"
	switch {
	case v > 0:
		dir = "forward"
	case v < 0:
		dir = "backward"
	}
	if err := m.Direction(dir); err != nil {
		b.fault(name+" direction", err)
		return
	}
	duty := byte(abs(v) * 255 / 100)
	if err := m.Speed(duty); err != nil {
		b.fault(name+" speed", err)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SetLED writes the indicator pin.
func (b *GroveBoard) SetLED(on bool) {
	var v byte
	if on {
		v = 1
	}
	if err := b.grove.DigitalWrite(b.pins.LED, v); err != nil {
		b.fault("led write", err)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.led = on
}

// ToggleLED flips the indicator pin.
func (b *GroveBoard) ToggleLED() {
	b.mu.Lock()
	next := !b.led
	b.mu.Unlock()
	b.SetLED(next)
}

// Sound queues a horn pulse train; a full queue drops the train.
func (b *GroveBoard) Sound(pulses int, gap time.Duration) {
	select {
	case b.hornCh <- hornTrain{pulses: pulses, gap: gap}:
	default:
		log.Debug("horn queue full, train dropped", "pulses", pulses)
	}
}

// hornLoop plays queued pulse trains on the buzzer.
func (b *GroveBoard) hornLoop(ctx context.Context) {
	defer close(b.hornDone)
	buzz := func(on byte) {
		if err := b.grove.DigitalWrite(b.pins.Buzzer, on); err != nil {
			b.fault("buzzer write", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			buzz(0)
			return
		case train := <-b.hornCh:
			for i := 0; i < train.pulses; i++ {
				buzz(1)
				time.Sleep(hornPulseWidth)
				buzz(0)
				if i+1 < train.pulses {
					time.Sleep(train.gap)
				}
			}
		}
	}
}

// WaitForStart polls the go button.
func (b *GroveBoard) WaitForStart(ctx context.Context) error {
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			v, err := b.grove.DigitalRead(b.pins.Button)
			if err != nil {
				b.fault("button read", err)
				continue
			}
			if v != 0 {
				return nil
			}
		}
	}
}
