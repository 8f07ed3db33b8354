package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/hal"
)

// Supervisor owns a run. It creates the shared record and the three
// worker tasks, dispatches them, keeps a slow all-alive heartbeat on
// the LED, and parks the robot on the way out.
type Supervisor struct {
	state *State
	board hal.Board
	cfg   Config
	runID string
	log   *slog.Logger

	collision *CollisionMonitor
	navigator *Navigator
	motor     *MotorOutput
}

// NewSupervisor builds a supervisor and its workers around one board.
func NewSupervisor(board hal.Board, cfg Config) *Supervisor {
	state := NewState()
	return &Supervisor{
		state:     state,
		board:     board,
		cfg:       cfg,
		runID:     uuid.NewString(),
		log:       log.Task("supervisor"),
		collision: NewCollisionMonitor(state, board, cfg),
		navigator: NewNavigator(state, board, cfg),
		motor:     NewMotorOutput(state, board, cfg),
	}
}

// RunID returns the identifier stamped on this run's log lines.
func (s *Supervisor) RunID() string { return s.runID }

// Run dispatches the worker tasks and blocks until ctx is canceled.
// The LED toggles on the heartbeat period as a visible all-alive sign.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("run starting", "run_id", s.runID)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.collision.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.motor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.navigator.Run(ctx)
	}()

	ticker := time.NewTicker(s.cfg.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			// Workers are gone; leave the robot safe.
			s.state.SetSpeeds(s.cfg.StopSpeed, s.cfg.StopSpeed)
			s.board.SetMotorSpeeds(s.cfg.StopSpeed, s.cfg.StopSpeed)
			s.log.Info("run stopped", "run_id", s.runID, "score", s.state.Score())
			return
		case <-ticker.C:
			s.board.ToggleLED()
			s.log.Debug("heartbeat",
				"checkpoint", s.navigator.Progress(),
				"score", s.state.Score(),
			)
		}
	}
}

// RunSnapshot bundles everything a display wants to show about a live
// run.
type RunSnapshot struct {
	RunID           string
	State           Snapshot
	Checkpoint      Checkpoint
	SeenL1          bool
	SeenL2          bool
	ReturnedToTrack bool
}

// Snapshot returns a point-in-time view of the run.
func (s *Supervisor) Snapshot() RunSnapshot {
	l1, l2, returned := s.navigator.Markers()
	return RunSnapshot{
		RunID:           s.runID,
		State:           s.state.Snapshot(),
		Checkpoint:      s.navigator.Progress(),
		SeenL1:          l1,
		SeenL2:          l2,
		ReturnedToTrack: returned,
	}
}
