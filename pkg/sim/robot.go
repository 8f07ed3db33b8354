package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/felixge/pidctrl"

	"github.com/robokar/go-robokar/pkg/hal"
)

// Params tunes the physical model and the synthetic sensors.
type Params struct {
	WheelBase     float64 // distance between wheel contact points, m
	MaxSpeed      float64 // wheel surface speed at full setpoint, m/s
	SensorForward float64 // line array lead ahead of the axle, m
	SensorSpread  float64 // lateral offset of the side elements, m
	ProxRange     float64 // proximity sensor reach from the nose, m
	LightAmbient  int     // light reading far from any zone

	// Wheel speed servo: PID output is acceleration, clamped.
	WheelKp       float64
	WheelKi       float64
	WheelKd       float64
	MaxWheelAccel float64 // m/s^2

	StepInterval time.Duration // background integration step
	AutoStart    bool          // skip the start button
}

// DefaultParams returns a tune that behaves like the classroom robot.
func DefaultParams() Params {
	return Params{
		WheelBase:     0.12,
		MaxSpeed:      0.5,
		SensorForward: 0.08,
		SensorSpread:  0.025,
		ProxRange:     0.15,
		LightAmbient:  15,
		WheelKp:       6.0,
		WheelKi:       0.5,
		WheelKd:       0.0,
		MaxWheelAccel: 3.0,
		StepInterval:  10 * time.Millisecond,
		AutoStart:     false,
	}
}

var _ hal.Board = (*Robot)(nil)

// Robot is a simulated differential-drive robot on a Track. It
// implements the full board surface: sensor reads are derived from the
// pose, actuator writes feed the model. Step advances the model by a
// fixed quantum; Run steps it in the background.
type Robot struct {
	mu sync.Mutex

	track  *Track
	params Params

	x, y, heading float64

	leftSet, rightSet int     // commanded setpoints, -100..100
	leftVel, rightVel float64 // actual wheel surface speeds, m/s
	leftPID, rightPID *pidctrl.PIDController

	led        bool
	hornPulses int
	simTime    time.Duration

	dropped *Obstacle // viewer-placed obstacle, at most one

	startCh   chan struct{}
	startOnce sync.Once
}

// NewRobot places a robot at the track's start pose.
func NewRobot(track *Track, params Params) *Robot {
	newServo := func() *pidctrl.PIDController {
		return pidctrl.NewPIDController(params.WheelKp, params.WheelKi, params.WheelKd).
			SetOutputLimits(-params.MaxWheelAccel, params.MaxWheelAccel)
	}
	r := &Robot{
		track:    track,
		params:   params,
		leftPID:  newServo(),
		rightPID: newServo(),
		startCh:  make(chan struct{}),
	}
	p, heading := track.Start()
	r.x, r.y, r.heading = p.X, p.Y, heading
	return r
}

// Open resets the robot to the start pose with the wheels parked.
func (r *Robot) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, heading := r.track.Start()
	r.x, r.y, r.heading = p.X, p.Y, heading
	r.leftSet, r.rightSet = 0, 0
	r.leftVel, r.rightVel = 0, 0
	r.led = false
	r.simTime = 0
	return nil
}

// Close parks the wheels.
func (r *Robot) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leftSet, r.rightSet = 0, 0
	return nil
}

// Run steps the model on its configured interval until ctx is
// canceled.
func (r *Robot) Run(ctx context.Context) {
	ticker := time.NewTicker(r.params.StepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Step(r.params.StepInterval)
		}
	}
}

// Step advances the model by dt: servo the wheels toward their
// setpoints, then integrate the pose.
func (r *Robot) Step(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec := dt.Seconds()
	r.simTime += dt

	wheels := []struct {
		set   int
		vel   *float64
		servo *pidctrl.PIDController
	}{
		{r.leftSet, &r.leftVel, r.leftPID},
		{r.rightSet, &r.rightVel, r.rightPID},
	}
	for _, w := range wheels {
		target := float64(w.set) / 100 * r.params.MaxSpeed
		w.servo.Set(target)
		accel := w.servo.UpdateDuration(*w.vel, dt)
		*w.vel += accel * sec
	}

	v := (r.leftVel + r.rightVel) / 2
	omega := (r.rightVel - r.leftVel) / r.params.WheelBase
	r.heading += omega * sec
	r.x += v * math.Cos(r.heading) * sec
	r.y += v * math.Sin(r.heading) * sec
}

// nose returns the world position of the sensor head.
func (r *Robot) nose() Point {
	return Point{
		X: r.x + r.params.SensorForward*math.Cos(r.heading),
		Y: r.y + r.params.SensorForward*math.Sin(r.heading),
	}
}

// sensorPoint returns the world position of a line element offset
// lateral meters to the left of the nose.
func (r *Robot) sensorPoint(lateral float64) Point {
	n := r.nose()
	return Point{
		X: n.X - lateral*math.Sin(r.heading),
		Y: n.Y + lateral*math.Cos(r.heading),
	}
}

func (r *Robot) readLine() uint8 {
	var code uint8
	if r.track.OnTape(r.sensorPoint(r.params.SensorSpread)) {
		code |= hal.LineBitLeft
	}
	if r.track.OnTape(r.sensorPoint(0)) {
		code |= hal.LineBitMiddle
	}
	if r.track.OnTape(r.sensorPoint(-r.params.SensorSpread)) {
		code |= hal.LineBitRight
	}
	return code
}

// ReadLine derives the 3-bit line code from the sensor head's position
// over the tape.
func (r *Robot) ReadLine() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLine()
}

func (r *Robot) obstacles() []Obstacle {
	obs := r.track.Obstacles
	if r.dropped != nil {
		obs = append(append([]Obstacle{}, obs...), *r.dropped)
	}
	return obs
}

func (r *Robot) readProximity() bool {
	n := r.nose()
	for _, o := range r.obstacles() {
		dx, dy := o.X-r.x, o.Y-r.y
		ahead := dx*math.Cos(r.heading)+dy*math.Sin(r.heading) > 0
		if ahead && dist(n, Point{o.X, o.Y})-o.Radius <= r.params.ProxRange {
			return true
		}
	}
	return false
}

// ReadProximity reports an obstacle within range ahead of the nose.
func (r *Robot) ReadProximity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readProximity()
}

func (r *Robot) readLight() int {
	reading := r.params.LightAmbient
	pos := Point{r.x, r.y}
	for _, l := range r.track.Lights {
		d := dist(pos, Point{l.X, l.Y})
		if d >= l.Radius {
			continue
		}
		v := r.params.LightAmbient +
			int(float64(l.Intensity-r.params.LightAmbient)*(1-d/l.Radius))
		if v > reading {
			reading = v
		}
	}
	if reading < 0 {
		return 0
	}
	if reading > 100 {
		return 100
	}
	return reading
}

// ReadLight returns the brightest zone contribution at the robot's
// position, over ambient.
func (r *Robot) ReadLight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLight()
}

// SetMotorSpeeds stores the wheel setpoints, clamped to -100..100.
func (r *Robot) SetMotorSpeeds(left, right int) {
	clamp := func(v int) int {
		if v < -100 {
			return -100
		}
		if v > 100 {
			return 100
		}
		return v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leftSet, r.rightSet = clamp(left), clamp(right)
}

// SetLED sets the indicator.
func (r *Robot) SetLED(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.led = on
}

// ToggleLED flips the indicator.
func (r *Robot) ToggleLED() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.led = !r.led
}

// Sound counts the pulse train; the simulated horn is silent.
func (r *Robot) Sound(pulses int, gap time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hornPulses += pulses
}

// WaitForStart blocks until PressStart unless AutoStart is set.
func (r *Robot) WaitForStart(ctx context.Context) error {
	if r.params.AutoStart {
		return nil
	}
	select {
	case <-r.startCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PressStart releases WaitForStart. Safe to call more than once.
func (r *Robot) PressStart() {
	r.startOnce.Do(func() { close(r.startCh) })
}

// DropObstacleAhead places a disc a short way ahead of the nose,
// replacing any previously dropped one.
func (r *Robot) DropObstacleAhead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nose()
	r.dropped = &Obstacle{
		X:      n.X + 0.12*math.Cos(r.heading),
		Y:      n.Y + 0.12*math.Sin(r.heading),
		Radius: 0.05,
	}
}

// ClearDroppedObstacle removes the viewer-placed obstacle.
func (r *Robot) ClearDroppedObstacle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = nil
}

// Status is a point-in-time view of the model for displays.
type Status struct {
	X, Y, Heading     float64
	LeftVel, RightVel float64
	LeftSet, RightSet int
	LED               bool
	HornPulses        int
	Line              uint8
	Prox              bool
	Light             int
	SimTime           time.Duration
	Dropped           *Obstacle
}

// Status returns the current model state and sensor picture.
func (r *Robot) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped *Obstacle
	if r.dropped != nil {
		o := *r.dropped
		dropped = &o
	}
	return Status{
		X:          r.x,
		Y:          r.y,
		Heading:    r.heading,
		LeftVel:    r.leftVel,
		RightVel:   r.rightVel,
		LeftSet:    r.leftSet,
		RightSet:   r.rightSet,
		LED:        r.led,
		HornPulses: r.hornPulses,
		Line:       r.readLine(),
		Prox:       r.readProximity(),
		Light:      r.readLight(),
		SimTime:    r.simTime,
		Dropped:    dropped,
	}
}

// Track returns the course the robot is on.
func (r *Robot) Track() *Track { return r.track }
