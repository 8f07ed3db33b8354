package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/hal"
)

// MotorOutput is the one place the motor driver gets written while a
// run is live. Once per period it copies the current setpoints from
// the shared record to the hardware, which decouples drive writes from
// the navigator's occasionally blocking cycle and keeps every other
// task off the driver.
type MotorOutput struct {
	state *State
	motor hal.MotorDriver
	cfg   Config
	log   *slog.Logger

	tickCount uint64
}

// NewMotorOutput wires the output stage to the shared record and the
// driver.
func NewMotorOutput(state *State, motor hal.MotorDriver, cfg Config) *MotorOutput {
	return &MotorOutput{
		state: state,
		motor: motor,
		cfg:   cfg,
		log:   log.Task("motor"),
	}
}

// Run drives the output stage at its configured period until ctx is
// canceled, then parks the wheels.
func (m *MotorOutput) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MotorPeriod)
	defer ticker.Stop()
	m.log.Info("motor output running", "period", m.cfg.MotorPeriod)
	for {
		select {
		case <-ctx.Done():
			m.motor.SetMotorSpeeds(m.cfg.StopSpeed, m.cfg.StopSpeed)
			m.log.Info("motor output stopped")
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick copies the shared setpoints to the driver.
func (m *MotorOutput) tick() {
	m.tickCount++
	left, right := m.state.Speeds()
	m.motor.SetMotorSpeeds(left, right)
	if m.tickCount%100 == 0 {
		m.log.Debug("motor heartbeat", "left", left, "right", right)
	}
}
