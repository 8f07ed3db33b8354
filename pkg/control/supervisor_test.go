package control

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSupervisorRunsAndParks(t *testing.T) {
	board := newMockBoard()
	board.setLine(lineMiddle)
	sup := NewSupervisor(board, fastConfig())

	if _, err := uuid.Parse(sup.RunID()); err != nil {
		t.Fatalf("run id %q not a uuid: %v", sup.RunID(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := board.speedWrites(); got < 3 {
		t.Errorf("driver writes = %d, want periodic output", got)
	}
	if l, r, ok := board.lastSpeeds(); !ok || l != 0 || r != 0 {
		t.Errorf("final driver write = %d/%d (ok %v), want parked", l, r, ok)
	}
	if got := board.toggleCount(); got < 1 {
		t.Errorf("LED toggles = %d, want heartbeat activity", got)
	}

	snap := sup.Snapshot()
	if snap.RunID != sup.RunID() {
		t.Errorf("snapshot run id %q != %q", snap.RunID, sup.RunID())
	}
	if snap.State.LeftSpeed != 0 || snap.State.RightSpeed != 0 {
		t.Errorf("snapshot speeds = %d/%d, want parked",
			snap.State.LeftSpeed, snap.State.RightSpeed)
	}
}

func TestSupervisorAvoidanceWinsOverNavigation(t *testing.T) {
	board := newMockBoard()
	board.setLine(lineMiddle)
	board.setProx(true)
	sup := NewSupervisor(board, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	// Give every task several cycles with the way blocked.
	time.Sleep(60 * time.Millisecond)
	snap := sup.Snapshot()
	cancel()
	<-done

	if !snap.State.ObstacleActive {
		t.Fatal("obstacle never latched")
	}
	if snap.State.LeftSpeed != 0 || snap.State.RightSpeed != 0 {
		t.Errorf("setpoints = %d/%d while blocked, want stop",
			snap.State.LeftSpeed, snap.State.RightSpeed)
	}
	if honks := board.honkLog(); len(honks) != 1 {
		t.Errorf("honks = %v, want exactly one", honks)
	}
}
