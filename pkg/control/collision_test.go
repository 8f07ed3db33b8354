package control

import (
	"context"
	"testing"
	"time"
)

func newTestMonitor(cfg Config) (*CollisionMonitor, *mockBoard, *State) {
	board := newMockBoard()
	st := NewState()
	return NewCollisionMonitor(st, board, cfg), board, st
}

func TestCollisionLatchesStopsAndHonksOnce(t *testing.T) {
	m, board, st := newTestMonitor(fastConfig())
	st.SetSpeeds(50, 50)
	board.setProx(true)

	m.tick()
	if !st.ObstacleActive() {
		t.Fatal("obstacle not latched")
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Fatalf("speeds = %d/%d, want stop", l, r)
	}
	if honks := board.honkLog(); len(honks) != 1 || honks[0] != 1 {
		t.Fatalf("honks = %v, want one single honk", honks)
	}

	// Still blocked: hold position, no further honks.
	m.tick()
	m.tick()
	if honks := board.honkLog(); len(honks) != 1 {
		t.Errorf("honks = %v after repeated blocked ticks", honks)
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d while blocked, want stop", l, r)
	}
	if m.ticks != 0 {
		t.Errorf("recovery timer advanced while blocked: %d", m.ticks)
	}
}

func TestCollisionRecoverySequence(t *testing.T) {
	cfg := fastConfig()
	cfg.BackupTicks = 2
	cfg.TurnTicks = 2
	cfg.SeekTicks = 3
	m, board, st := newTestMonitor(cfg)

	board.setProx(true)
	m.tick()
	board.setProx(false)

	// Backing up: reverse until the phase times out.
	for i := 0; i < 3; i++ {
		m.tick()
		if l, r := st.Speeds(); l != cfg.ReverseSpeed || r != cfg.ReverseSpeed {
			t.Fatalf("backup tick %d: speeds = %d/%d, want reverse", i, l, r)
		}
	}
	if m.phase != phaseTurning {
		t.Fatalf("phase = %v after backup, want turning", m.phase)
	}

	// Turning: swing right.
	for i := 0; i < 3; i++ {
		m.tick()
		if l, r := st.Speeds(); l != cfg.LowSpeed || r != -cfg.LowSpeed {
			t.Fatalf("turn tick %d: speeds = %d/%d", i, l, r)
		}
	}
	if m.phase != phaseSeekingLine {
		t.Fatalf("phase = %v after turn, want seeking", m.phase)
	}

	// Seeking: creep forward until the line shows up again.
	m.tick()
	if l, r := st.Speeds(); l != cfg.LowSpeed || r != cfg.LowSpeed {
		t.Fatalf("seek speeds = %d/%d", l, r)
	}
	if !st.ObstacleActive() {
		t.Fatal("avoidance ended before the line was found")
	}

	board.setLine(2)
	m.tick()
	if st.ObstacleActive() {
		t.Fatal("avoidance still active after line reacquired")
	}
	if m.phase != phaseBackingUp || m.ticks != 0 {
		t.Errorf("monitor not reset: phase %v ticks %d", m.phase, m.ticks)
	}
}

func TestCollisionSeekTimesOut(t *testing.T) {
	cfg := fastConfig()
	cfg.BackupTicks = 0
	cfg.TurnTicks = 0
	cfg.SeekTicks = 2
	m, board, st := newTestMonitor(cfg)

	board.setProx(true)
	m.tick()
	board.setProx(false)

	// One tick per zero-length phase, then the seek window.
	deadline := 10
	for i := 0; i < deadline && st.ObstacleActive(); i++ {
		m.tick()
	}
	if st.ObstacleActive() {
		t.Fatal("avoidance never timed out with no line in sight")
	}
}

func TestCollisionTimerFreezesWhileBlocked(t *testing.T) {
	cfg := fastConfig()
	cfg.BackupTicks = 5
	m, board, st := newTestMonitor(cfg)

	board.setProx(true)
	m.tick()
	board.setProx(false)
	m.tick()
	m.tick()
	if m.ticks != 2 {
		t.Fatalf("timer = %d after two clear ticks, want 2", m.ticks)
	}

	// Blocked again mid-recovery: hold, freeze, stay latched.
	board.setProx(true)
	m.tick()
	m.tick()
	if m.ticks != 2 {
		t.Errorf("timer = %d while re-blocked, want 2", m.ticks)
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d while re-blocked, want stop", l, r)
	}
	if honks := board.honkLog(); len(honks) != 1 {
		t.Errorf("re-block honked again: %v", honks)
	}

	board.setProx(false)
	m.tick()
	if m.ticks != 3 {
		t.Errorf("timer = %d after resume, want 3", m.ticks)
	}
}

func TestCollisionRunStops(t *testing.T) {
	m, board, _ := newTestMonitor(fastConfig())
	board.setProx(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
