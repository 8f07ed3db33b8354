package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/hal"
)

// Line-sensor codes the navigator steers by. Bit 2 is the left
// element, bit 1 the middle, bit 0 the right.
const (
	lineLost        uint8 = 0
	lineRight       uint8 = 1
	lineMiddle      uint8 = 2
	lineMiddleRight uint8 = 3
	lineLeft        uint8 = 4
	lineOuter       uint8 = 5
	lineLeftMiddle  uint8 = 6
	lineFullBar     uint8 = hal.FullBar
)

// Steering correction factors for the single-element and two-element
// readings. Applied to the medium setpoint and truncated.
const (
	sharpTurnFactor  = 0.7
	gentleTurnFactor = 0.8
)

// Lost-line escalation boundaries, in consecutive lost ticks.
const (
	lostBackupLimit = 5  // below this, back straight up
	lostSearchLimit = 15 // below this, rotate toward the last sighting
	lostResetLimit  = 25 // beyond this, restart the escalation
	lostFlipEvery   = 5  // spiral search flips direction at this cadence
)

// Scoring and signaling constants for the light markers.
const (
	l1Points      = 5
	l1BonusPoints = 10
	l2Points      = 15

	l1BlinkCount    = 2
	l1BlinkInterval = 100 * time.Millisecond

	bonusBlinkCount    = 3
	bonusBlinkInterval = 150 * time.Millisecond

	doubleHonkGap = 200 * time.Millisecond
)

// NavigationIO is the slice of the board the navigator touches.
type NavigationIO interface {
	hal.LineSensor
	hal.LightSensor
	hal.Indicator
	hal.Horn
}

// Navigator runs the main control cycle: read the line array and the
// light sensor, steer, watch for markers and checkpoint bars, and
// publish wheel setpoints. All of its setpoint writes go through the
// avoidance gate, so the collision monitor silently wins whenever it
// owns the wheels.
type Navigator struct {
	state *State
	io    NavigationIO
	cfg   Config
	log   *slog.Logger

	// Line recovery.
	lostTicks int
	lastSeen  uint8
	searchDir int

	// Run progression, guarded for concurrent Progress readers.
	mu              sync.RWMutex
	cp              Checkpoint
	seenL1          bool
	seenL2          bool
	returnedToTrack bool

	tickCount uint64
}

// NewNavigator wires a navigator to the shared record and the board
// slice it needs.
func NewNavigator(state *State, io NavigationIO, cfg Config) *Navigator {
	return &Navigator{
		state: state,
		io:    io,
		cfg:   cfg,
		log:   log.Task("navigation"),
		// A fresh robot assumes the line was last seen under the
		// middle element and searches rightward first.
		lastSeen:  lineMiddle,
		searchDir: 1,
	}
}

// Run drives the navigator at its configured period until ctx is
// canceled. Cycles stretch when a blocking pause (bar stop, marker
// maneuver, settling delay) runs; the ticker then fires again on the
// next period boundary.
func (n *Navigator) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.NavPeriod)
	defer ticker.Stop()
	n.log.Info("navigator running", "period", n.cfg.NavPeriod)
	for {
		select {
		case <-ctx.Done():
			n.log.Info("navigator stopped")
			return
		case <-ticker.C:
			n.tick()
		}
	}
}

// Progress returns the checkpoint the robot has reached.
func (n *Navigator) Progress() Checkpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cp
}

// Markers reports the marker latches: first marker seen, second marker
// seen, and whether the return-to-track maneuver has run.
func (n *Navigator) Markers() (seenL1, seenL2, returnedToTrack bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.seenL1, n.seenL2, n.returnedToTrack
}

// tick is one navigation cycle.
func (n *Navigator) tick() {
	n.tickCount++

	if n.Progress().Terminal() {
		// Course complete: hold the robot stopped forever.
		n.commit(n.cfg.StopSpeed, n.cfg.StopSpeed)
		return
	}

	code := n.io.ReadLine()
	light := n.io.ReadLight()

	if code != lineLost {
		n.lastSeen = code
		n.lostTicks = 0
	}

	left, right := n.followLine(code)
	left, right = n.watchLight(light, left, right)
	left, right = n.crossCheckpoint(code, left, right)

	if !n.commit(left, right) {
		return
	}
	// Settling delays from the track tune: longer while hunting a lost
	// line, shorter after a gentle correction.
	if code == lineLost && n.lostTicks > 0 {
		time.Sleep(n.cfg.RecoveryDelay)
	} else if code == lineMiddleRight || code == lineLeftMiddle {
		time.Sleep(n.cfg.GentleTurnDelay)
	}

	if n.tickCount%100 == 0 {
		n.log.Debug("navigator heartbeat",
			"ticks", n.tickCount,
			"checkpoint", n.Progress(),
			"score", n.state.Score(),
		)
	}
}

// commit publishes setpoints through the avoidance gate and reports
// whether the write landed.
func (n *Navigator) commit(left, right int) bool {
	return n.state.SetSpeedsUnlessAvoiding(left, right)
}

// scaled applies a steering factor to a setpoint, truncating toward
// zero.
func scaled(speed int, factor float64) int {
	return int(float64(speed) * factor)
}

// followLine maps a line code to wheel setpoints. A full bar stops the
// robot for the configured pause before it rolls on; the checkpoint
// side effects happen later in the cycle.
func (n *Navigator) followLine(code uint8) (left, right int) {
	med := n.cfg.MediumSpeed
	switch code {
	case lineLost:
		return n.recoverLine()
	case lineRight:
		return med, scaled(med, sharpTurnFactor)
	case lineMiddle:
		return med, med
	case lineMiddleRight:
		return med, scaled(med, gentleTurnFactor)
	case lineLeft:
		return scaled(med, sharpTurnFactor), med
	case lineLeftMiddle:
		return scaled(med, gentleTurnFactor), med
	case lineOuter:
		// Split reading (left+right, no middle): creep until it
		// resolves.
		return n.cfg.LowSpeed, n.cfg.LowSpeed
	case lineFullBar:
		n.commit(n.cfg.StopSpeed, n.cfg.StopSpeed)
		time.Sleep(n.cfg.BarPause)
		return med, med
	default:
		return n.cfg.LowSpeed, n.cfg.LowSpeed
	}
}

// recoverLine escalates the hunt for a lost line: back up onto it,
// then rotate toward where it was last seen, then creep forward and
// start the escalation over.
func (n *Navigator) recoverLine() (left, right int) {
	n.lostTicks++
	switch {
	case n.lostTicks < lostBackupLimit:
		return n.cfg.ReverseSpeed, n.cfg.ReverseSpeed
	case n.lostTicks < lostSearchLimit:
		switch n.lastSeen {
		case lineRight, lineMiddleRight:
			return n.cfg.LowSpeed, -n.cfg.LowSpeed
		case lineLeft, lineLeftMiddle:
			return -n.cfg.LowSpeed, n.cfg.LowSpeed
		default:
			// No side preference: rotate in place, flipping direction
			// periodically so the sweep widens both ways.
			left = n.searchDir * n.cfg.MediumSpeed
			right = -n.searchDir * n.cfg.MediumSpeed
			if n.lostTicks%lostFlipEvery == 0 {
				n.searchDir = -n.searchDir
			}
			return left, right
		}
	default:
		if n.lostTicks > lostResetLimit {
			n.lostTicks = 0
		}
		return n.cfg.LowSpeed, n.cfg.LowSpeed
	}
}

// watchLight handles the two light markers. Entering a bright zone
// lights the LED and honks once; leaving it clears the LED. The first
// marker scores and blinks, the second latches with a double honk and,
// exactly at the fourth checkpoint, triggers the return-to-track
// maneuver. The maneuver may replace the cycle's setpoints.
func (n *Navigator) watchLight(light, left, right int) (int, int) {
	if light <= n.cfg.LightThreshold {
		if n.state.LightDetected() {
			n.io.SetLED(false)
			n.state.SetLightDetected(false)
		}
		return left, right
	}

	if !n.state.LightDetected() {
		n.io.SetLED(true)
		n.io.Sound(1, 0)
		n.state.SetLightDetected(true)
	}

	n.mu.Lock()
	cp, seenL1, seenL2, returned := n.cp, n.seenL1, n.seenL2, n.returnedToTrack
	switch {
	case cp < CheckpointC && !seenL1:
		n.seenL1 = true
	case cp >= CheckpointC && !seenL2:
		n.seenL2 = true
	}
	latchedL1 := n.seenL1 && !seenL1
	latchedL2 := n.seenL2 && !seenL2
	runManeuver := latchedL2 && cp == CheckpointD && !returned
	if runManeuver {
		n.returnedToTrack = true
	}
	n.mu.Unlock()

	if latchedL1 {
		score := n.state.AddScore(l1Points)
		n.log.Info("first light marker", "score", score)
		n.blink(l1BlinkCount, l1BlinkInterval)
	}
	if latchedL2 {
		n.log.Info("second light marker", "maneuver", runManeuver)
		n.io.Sound(2, doubleHonkGap)
		if runManeuver {
			left, right = n.returnToTrack()
			score := n.state.AddScore(l2Points)
			n.log.Info("return maneuver complete", "score", score)
		}
	}
	return left, right
}

// returnToTrack backs away from the marker spur and swings back onto
// the main line. It blocks for both timed legs; the setpoint writes
// still honor the avoidance gate. The turn setpoints are returned so
// they persist for the rest of the cycle.
func (n *Navigator) returnToTrack() (left, right int) {
	n.commit(n.cfg.ReverseSpeed, n.cfg.ReverseSpeed)
	time.Sleep(n.cfg.ManeuverReverse)

	left, right = n.cfg.MediumSpeed, -n.cfg.LowSpeed
	n.commit(left, right)
	time.Sleep(n.cfg.ManeuverTurn)
	return left, right
}

// crossCheckpoint advances progression on a full-bar reading and plays
// out the arrival's scoring and signaling. Arriving at the finish
// replaces the setpoints with a stop.
func (n *Navigator) crossCheckpoint(code uint8, left, right int) (int, int) {
	if code != lineFullBar {
		return left, right
	}

	n.mu.Lock()
	next := n.cp.Next()
	n.cp = next
	seenL1 := n.seenL1
	n.mu.Unlock()

	award := awards[next]
	score := n.state.Score()
	if award.points > 0 {
		score = n.state.AddScore(award.points)
	}
	if award.l1Bonus > 0 && seenL1 {
		score = n.state.AddScore(award.l1Bonus)
		n.blink(bonusBlinkCount, bonusBlinkInterval)
	}
	if award.toggleLED {
		n.io.ToggleLED()
	}
	if award.finish {
		n.io.SetLED(true)
		left, right = n.cfg.StopSpeed, n.cfg.StopSpeed
		n.log.Info("course complete", "score", score)
	} else {
		n.log.Info("checkpoint", "at", next, "score", score)
	}
	return left, right
}

// blink pulses the LED, leaving it off.
func (n *Navigator) blink(times int, interval time.Duration) {
	for i := 0; i < times; i++ {
		n.io.SetLED(true)
		time.Sleep(interval)
		n.io.SetLED(false)
		time.Sleep(interval)
	}
}
