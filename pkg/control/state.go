// Package control implements the onboard course logic: a shared robot
// record plus the periodic tasks that follow the line, dodge
// obstacles, collect the light markers, track checkpoint progression
// and drive the motors. A Supervisor ties one board and one Config
// into a run.
package control

import "sync"

// State is the single shared record every control task works against:
// the wheel setpoints, the avoidance flag, the score, and the light
// latch. The mutex makes individual accesses safe; which task may write
// the setpoints at any moment is governed by the avoidance flag, and
// SetSpeedsUnlessAvoiding enforces that handover atomically.
type State struct {
	mu sync.RWMutex

	leftSpeed      int
	rightSpeed     int
	obstacleActive bool
	score          int
	lightDetected  bool
}

// NewState returns a zeroed record: stopped, clear, score 0.
func NewState() *State { return &State{} }

// Speeds returns the current wheel setpoints.
func (s *State) Speeds() (left, right int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leftSpeed, s.rightSpeed
}

// SetSpeeds stores the wheel setpoints unconditionally. Only the task
// that currently owns the setpoints may call this.
func (s *State) SetSpeeds(left, right int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leftSpeed, s.rightSpeed = left, right
}

// SetSpeedsUnlessAvoiding publishes setpoints only while the collision
// monitor does not own them, and reports whether the write landed. The
// check and the write happen under one lock so the navigator can never
// clobber an avoidance maneuver.
func (s *State) SetSpeedsUnlessAvoiding(left, right int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obstacleActive {
		return false
	}
	s.leftSpeed, s.rightSpeed = left, right
	return true
}

// BeginAvoidance claims setpoint ownership for the collision monitor
// and stops the robot in the same step.
func (s *State) BeginAvoidance(stopSpeed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacleActive = true
	s.leftSpeed, s.rightSpeed = stopSpeed, stopSpeed
}

// EndAvoidance returns setpoint ownership to the navigator.
func (s *State) EndAvoidance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obstacleActive = false
}

// ObstacleActive reports whether the collision monitor owns the
// setpoints.
func (s *State) ObstacleActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obstacleActive
}

// AddScore adds n points and returns the new total.
func (s *State) AddScore(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score += n
	return s.score
}

// Score returns the current total.
func (s *State) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// SetLightDetected records whether the robot is currently inside a
// bright zone.
func (s *State) SetLightDetected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lightDetected = v
}

// LightDetected reports whether the robot is currently inside a bright
// zone.
func (s *State) LightDetected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lightDetected
}

// Snapshot is a point-in-time copy of the shared record for displays
// and logging.
type Snapshot struct {
	LeftSpeed      int
	RightSpeed     int
	ObstacleActive bool
	Score          int
	LightDetected  bool
}

// Snapshot returns a consistent copy of the record.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		LeftSpeed:      s.leftSpeed,
		RightSpeed:     s.rightSpeed,
		ObstacleActive: s.obstacleActive,
		Score:          s.score,
		LightDetected:  s.lightDetected,
	}
}
