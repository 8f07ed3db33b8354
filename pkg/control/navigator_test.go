package control

import (
	"context"
	"testing"
	"time"
)

func newTestNavigator(cfg Config) (*Navigator, *mockBoard, *State) {
	board := newMockBoard()
	st := NewState()
	return NewNavigator(st, board, cfg), board, st
}

func TestFollowLineTable(t *testing.T) {
	cases := []struct {
		code        uint8
		left, right int
	}{
		{lineRight, 50, 35},
		{lineMiddle, 50, 50},
		{lineMiddleRight, 50, 40},
		{lineLeft, 35, 50},
		{lineOuter, 30, 30},
		{lineLeftMiddle, 40, 50},
	}
	for _, tc := range cases {
		nav, board, st := newTestNavigator(fastConfig())
		board.setLine(tc.code)
		nav.tick()
		if l, r := st.Speeds(); l != tc.left || r != tc.right {
			t.Errorf("code %d: speeds = %d/%d, want %d/%d", tc.code, l, r, tc.left, tc.right)
		}
	}
}

func TestScaledTruncates(t *testing.T) {
	cases := []struct {
		speed  int
		factor float64
		want   int
	}{
		{50, 0.7, 35},
		{50, 0.8, 40},
		{45, 0.7, 31},
		{55, 0.7, 38},
	}
	for _, tc := range cases {
		if got := scaled(tc.speed, tc.factor); got != tc.want {
			t.Errorf("scaled(%d, %v) = %d, want %d", tc.speed, tc.factor, got, tc.want)
		}
	}
}

func TestLostLineEscalation(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())

	// Seen once in the middle, then gone.
	board.setLine(lineMiddle)
	nav.tick()
	board.setLine(lineLost)

	// Phase one: back up onto the line.
	for i := 1; i < lostBackupLimit; i++ {
		nav.tick()
		if l, r := st.Speeds(); l != -30 || r != -30 {
			t.Fatalf("lost tick %d: speeds = %d/%d, want reverse", i, l, r)
		}
	}

	// Phase two: no side preference, so spiral. Direction flips part
	// way through the window.
	var spins [][2]int
	for i := lostBackupLimit; i < lostSearchLimit; i++ {
		nav.tick()
		l, r := st.Speeds()
		spins = append(spins, [2]int{l, r})
	}
	if first := spins[0]; first[0] != 50 || first[1] != -50 {
		t.Fatalf("first spin = %v, want rightward rotate", first)
	}
	flipped := false
	for _, s := range spins {
		if s[0] == -50 && s[1] == 50 {
			flipped = true
			break
		}
	}
	if !flipped {
		t.Error("spiral search never flipped direction")
	}

	// Phase three: creep forward.
	nav.tick()
	if l, r := st.Speeds(); l != 30 || r != 30 {
		t.Fatalf("creep speeds = %d/%d, want 30/30", l, r)
	}

	// Past the reset limit the escalation starts over with a back-up.
	for nav.lostTicks != 0 {
		nav.tick()
	}
	nav.tick()
	if l, r := st.Speeds(); l != -30 || r != -30 {
		t.Errorf("post-reset speeds = %d/%d, want reverse", l, r)
	}
}

func TestLostLineSteersTowardLastSighting(t *testing.T) {
	cases := []struct {
		lastSeen    uint8
		left, right int
	}{
		{lineRight, 30, -30},
		{lineMiddleRight, 30, -30},
		{lineLeft, -30, 30},
		{lineLeftMiddle, -30, 30},
	}
	for _, tc := range cases {
		nav, board, st := newTestNavigator(fastConfig())
		board.setLine(tc.lastSeen)
		nav.tick()
		board.setLine(lineLost)
		// Skip past the back-up window into the search window.
		for i := 0; i < lostBackupLimit; i++ {
			nav.tick()
		}
		if l, r := st.Speeds(); l != tc.left || r != tc.right {
			t.Errorf("last seen %d: search speeds = %d/%d, want %d/%d",
				tc.lastSeen, l, r, tc.left, tc.right)
		}
	}
}

func TestFullBarPausesThenResumes(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	board.setLine(lineFullBar)

	nav.tick()
	if got := nav.Progress(); got != CheckpointA {
		t.Fatalf("progress = %v after first bar, want A", got)
	}
	if got := st.Score(); got != 0 {
		t.Errorf("score = %d after arming crossing, want 0", got)
	}
	// After the pause the robot rolls on at medium.
	if l, r := st.Speeds(); l != 50 || r != 50 {
		t.Errorf("speeds = %d/%d after bar, want medium", l, r)
	}
}

func TestCheckpointProgression(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	board.setLine(lineFullBar)

	want := []struct {
		cp    Checkpoint
		score int
	}{
		{CheckpointA, 0},
		{CheckpointB, 5},
		{CheckpointC, 10},
		{CheckpointD, 15},
		{CheckpointE, 20},
		{CheckpointF, 25},
		{CheckpointDone, 30},
	}
	for _, w := range want {
		nav.tick()
		if got := nav.Progress(); got != w.cp {
			t.Fatalf("progress = %v, want %v", got, w.cp)
		}
		if got := st.Score(); got != w.score {
			t.Fatalf("score = %d at %v, want %d", got, w.cp, w.score)
		}
	}

	// C through F toggle the LED; the finish forces it on.
	if got := board.toggleCount(); got != 4 {
		t.Errorf("LED toggles = %d, want 4", got)
	}
	if !board.ledState() {
		t.Error("LED should be lit at the finish")
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d at finish, want stop", l, r)
	}

	// Terminal: further cycles change nothing and hold the stop.
	st.SetSpeeds(50, 50)
	nav.tick()
	if got := nav.Progress(); got != CheckpointDone {
		t.Errorf("progress moved past done: %v", got)
	}
	if got := st.Score(); got != 30 {
		t.Errorf("score moved after done: %d", got)
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d after done, want stop", l, r)
	}
}

func TestDoneIgnoresSensors(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	nav.cp = CheckpointDone
	board.setLine(lineFullBar)
	board.setLight(95)

	nav.tick()
	if honks := board.honkLog(); len(honks) != 0 {
		t.Errorf("done robot honked: %v", honks)
	}
	if got := st.Score(); got != 0 {
		t.Errorf("done robot scored: %d", got)
	}
	if st.LightDetected() {
		t.Error("done robot latched the light flag")
	}
}

func TestFirstMarkerScoresOnce(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	board.setLine(lineMiddle)
	board.setLight(90)

	nav.tick()
	seenL1, seenL2, _ := nav.Markers()
	if !seenL1 || seenL2 {
		t.Fatalf("markers = %v/%v, want L1 only", seenL1, seenL2)
	}
	if got := st.Score(); got != 5 {
		t.Fatalf("score = %d after first marker, want 5", got)
	}
	if honks := board.honkLog(); len(honks) != 1 || honks[0] != 1 {
		t.Errorf("honks = %v, want one single honk", honks)
	}
	if !st.LightDetected() {
		t.Error("light flag not set inside the bright zone")
	}

	// Still bright: nothing repeats.
	nav.tick()
	if got := st.Score(); got != 5 {
		t.Errorf("score = %d while still bright, want 5", got)
	}
	if honks := board.honkLog(); len(honks) != 1 {
		t.Errorf("honks = %v while still bright", honks)
	}

	// Leaving the zone clears the flag and the LED.
	board.setLight(10)
	nav.tick()
	if st.LightDetected() {
		t.Error("light flag still set outside the zone")
	}
	if board.ledState() {
		t.Error("LED still lit outside the zone")
	}

	// Re-entering signals again but cannot re-latch the marker.
	board.setLight(90)
	nav.tick()
	if got := st.Score(); got != 5 {
		t.Errorf("score = %d after re-entry, want 5", got)
	}
	if honks := board.honkLog(); len(honks) != 2 {
		t.Errorf("honks = %v after re-entry, want a second single honk", honks)
	}
}

func TestThresholdIsExclusive(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	board.setLine(lineMiddle)
	board.setLight(70)

	nav.tick()
	if st.LightDetected() {
		t.Error("reading equal to the threshold must not trigger")
	}
	if got := st.Score(); got != 0 {
		t.Errorf("score = %d at threshold, want 0", got)
	}
}

func TestCheckpointBonusAfterFirstMarker(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())

	// Latch the first marker before the arming crossing.
	board.setLine(lineMiddle)
	board.setLight(90)
	nav.tick()
	board.setLight(0)

	// Cross two bars: arming, then the bonus checkpoint.
	board.setLine(lineFullBar)
	nav.tick()
	nav.tick()

	if got := nav.Progress(); got != CheckpointB {
		t.Fatalf("progress = %v, want B", got)
	}
	// Marker 5, arming 0, checkpoint 5, bonus 10.
	if got := st.Score(); got != 20 {
		t.Errorf("score = %d, want 20", got)
	}
}

func TestMarkerDispatchBoundary(t *testing.T) {
	// A bright reading before the third checkpoint goes to the first
	// marker, from the third on to the second.
	nav, board, _ := newTestNavigator(fastConfig())
	nav.cp = CheckpointB
	board.setLine(lineMiddle)
	board.setLight(90)

	nav.tick()
	seenL1, seenL2, _ := nav.Markers()
	if !seenL1 {
		t.Error("marker before the boundary did not latch L1")
	}
	if seenL2 {
		t.Error("marker before the boundary latched L2")
	}
}

func TestSecondMarkerLatchWithoutManeuver(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	nav.cp = CheckpointC
	board.setLine(lineMiddle)
	board.setLight(90)

	nav.tick()
	seenL1, seenL2, returned := nav.Markers()
	if seenL1 || !seenL2 {
		t.Fatalf("markers = %v/%v, want L2 only", seenL1, seenL2)
	}
	if returned {
		t.Error("maneuver ran away from the fourth checkpoint")
	}
	// Entry honk plus the latch's double honk; no maneuver points.
	if honks := board.honkLog(); len(honks) != 2 || honks[0] != 1 || honks[1] != 2 {
		t.Errorf("honks = %v, want [1 2]", honks)
	}
	if got := st.Score(); got != 0 {
		t.Errorf("score = %d without maneuver, want 0", got)
	}
}

func TestSecondMarkerManeuverAtFourthCheckpoint(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	nav.cp = CheckpointD
	board.setLine(lineMiddle)
	board.setLight(90)

	nav.tick()
	_, seenL2, returned := nav.Markers()
	if !seenL2 || !returned {
		t.Fatalf("latches = L2 %v returned %v, want both", seenL2, returned)
	}
	if got := st.Score(); got != 15 {
		t.Errorf("score = %d after maneuver, want 15", got)
	}
	// The turn leg's setpoints persist for the rest of the cycle.
	if l, r := st.Speeds(); l != 50 || r != -30 {
		t.Errorf("speeds = %d/%d after maneuver, want 50/-30", l, r)
	}

	// Bright again: the latch holds, nothing reruns.
	nav.tick()
	if got := st.Score(); got != 15 {
		t.Errorf("score = %d on second bright cycle, want 15", got)
	}
}

func TestManeuverHonorsAvoidanceGate(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	nav.cp = CheckpointD
	st.BeginAvoidance(0)
	board.setLine(lineMiddle)
	board.setLight(90)

	nav.tick()
	// Latches and score still happen, but no setpoint write lands.
	if got := st.Score(); got != 15 {
		t.Errorf("score = %d, want 15", got)
	}
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d during avoidance, want stop", l, r)
	}
}

func TestNavigatorGatedDuringAvoidance(t *testing.T) {
	nav, board, st := newTestNavigator(fastConfig())
	st.BeginAvoidance(0)
	board.setLine(lineMiddle)

	nav.tick()
	if l, r := st.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds = %d/%d, navigator wrote through the gate", l, r)
	}
}

func TestNavigatorRunStops(t *testing.T) {
	nav, board, _ := newTestNavigator(fastConfig())
	board.setLine(lineMiddle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		nav.Run(ctx)
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
