package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/hal"
)

// recoveryPhase enumerates the timed legs of the obstacle-avoidance
// sequence.
type recoveryPhase int

const (
	phaseBackingUp recoveryPhase = iota
	phaseTurning
	phaseSeekingLine
)

func (p recoveryPhase) String() string {
	switch p {
	case phaseBackingUp:
		return "backing-up"
	case phaseTurning:
		return "turning"
	case phaseSeekingLine:
		return "seeking-line"
	}
	return "unknown"
}

// AvoidanceIO is the slice of the board the collision monitor touches.
type AvoidanceIO interface {
	hal.ProximitySensor
	hal.LineSensor
	hal.Horn
}

// CollisionMonitor watches the proximity sensor. The instant an
// obstacle appears it claims the wheel setpoints, stops the robot and
// honks once; it then walks a timed back-up, turn, seek-line sequence
// and hands the setpoints back to the navigator. While the way ahead
// stays blocked the robot holds still and the sequence timer does not
// advance.
type CollisionMonitor struct {
	state *State
	io    AvoidanceIO
	cfg   Config
	log   *slog.Logger

	phase recoveryPhase
	ticks int

	tickCount uint64
}

// NewCollisionMonitor wires a monitor to the shared record and the
// board slice it needs.
func NewCollisionMonitor(state *State, io AvoidanceIO, cfg Config) *CollisionMonitor {
	return &CollisionMonitor{
		state: state,
		io:    io,
		cfg:   cfg,
		log:   log.Task("collision"),
	}
}

// Run drives the monitor at its configured period until ctx is
// canceled.
func (m *CollisionMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CollisionPeriod)
	defer ticker.Stop()
	m.log.Info("collision monitor running", "period", m.cfg.CollisionPeriod)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("collision monitor stopped")
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick is one monitor cycle.
func (m *CollisionMonitor) tick() {
	m.tickCount++
	blocked := m.io.ReadProximity()

	switch {
	case blocked && !m.state.ObstacleActive():
		m.state.BeginAvoidance(m.cfg.StopSpeed)
		m.phase = phaseBackingUp
		m.ticks = 0
		m.io.Sound(1, 0)
		m.log.Info("obstacle detected")
	case m.state.ObstacleActive():
		if blocked {
			// Way still blocked: hold position, keep the timer frozen.
			m.state.SetSpeeds(m.cfg.StopSpeed, m.cfg.StopSpeed)
			return
		}
		m.advance()
	}
}

// advance moves the recovery sequence forward by one clear tick.
func (m *CollisionMonitor) advance() {
	m.ticks++
	switch m.phase {
	case phaseBackingUp:
		m.state.SetSpeeds(m.cfg.ReverseSpeed, m.cfg.ReverseSpeed)
		if m.ticks > m.cfg.BackupTicks {
			m.phase = phaseTurning
			m.ticks = 0
			m.log.Debug("avoidance phase change", "phase", m.phase)
		}
	case phaseTurning:
		m.state.SetSpeeds(m.cfg.LowSpeed, -m.cfg.LowSpeed)
		if m.ticks > m.cfg.TurnTicks {
			m.phase = phaseSeekingLine
			m.ticks = 0
			m.log.Debug("avoidance phase change", "phase", m.phase)
		}
	case phaseSeekingLine:
		m.state.SetSpeeds(m.cfg.LowSpeed, m.cfg.LowSpeed)
		if m.io.ReadLine() != 0 || m.ticks > m.cfg.SeekTicks {
			m.state.EndAvoidance()
			m.phase = phaseBackingUp
			m.ticks = 0
			m.log.Info("avoidance complete, line handed back")
		}
	}
}
