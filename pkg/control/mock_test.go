package control

import (
	"context"
	"sync"
	"time"

	"github.com/robokar/go-robokar/pkg/hal"
)

var _ hal.Board = (*mockBoard)(nil)

// mockBoard is a scriptable board for task tests. Readings are set by
// the test; actuator writes are recorded for assertions. Safe for use
// from the task goroutines.
type mockBoard struct {
	mu sync.Mutex

	line  uint8
	prox  bool
	light int

	speeds     [][2]int
	led        bool
	ledWrites  []bool
	ledToggles int
	honks      []int

	startCh chan struct{}
}

func newMockBoard() *mockBoard {
	return &mockBoard{startCh: make(chan struct{})}
}

func (b *mockBoard) setLine(code uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.line = code
}

func (b *mockBoard) setProx(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prox = v
}

func (b *mockBoard) setLight(v int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.light = v
}

func (b *mockBoard) ReadLine() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line
}

func (b *mockBoard) ReadProximity() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prox
}

func (b *mockBoard) ReadLight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.light
}

func (b *mockBoard) SetMotorSpeeds(left, right int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speeds = append(b.speeds, [2]int{left, right})
}

func (b *mockBoard) lastSpeeds() (left, right int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.speeds) == 0 {
		return 0, 0, false
	}
	last := b.speeds[len(b.speeds)-1]
	return last[0], last[1], true
}

func (b *mockBoard) speedWrites() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.speeds)
}

func (b *mockBoard) SetLED(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.led = on
	b.ledWrites = append(b.ledWrites, on)
}

func (b *mockBoard) ToggleLED() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.led = !b.led
	b.ledToggles++
}

func (b *mockBoard) ledState() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.led
}

func (b *mockBoard) toggleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledToggles
}

func (b *mockBoard) Sound(pulses int, gap time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.honks = append(b.honks, pulses)
}

func (b *mockBoard) honkLog() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.honks))
	copy(out, b.honks)
	return out
}

func (b *mockBoard) WaitForStart(ctx context.Context) error {
	select {
	case <-b.startCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *mockBoard) pressStart() { close(b.startCh) }

func (b *mockBoard) Open() error  { return nil }
func (b *mockBoard) Close() error { return nil }

// fastConfig is the default tune with every pause shrunk so blocking
// maneuvers finish in test time.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.NavPeriod = 5 * time.Millisecond
	cfg.MotorPeriod = 5 * time.Millisecond
	cfg.CollisionPeriod = 5 * time.Millisecond
	cfg.HeartbeatPeriod = 20 * time.Millisecond
	cfg.BarPause = time.Millisecond
	cfg.RecoveryDelay = 0
	cfg.GentleTurnDelay = 0
	cfg.ManeuverReverse = time.Millisecond
	cfg.ManeuverTurn = time.Millisecond
	return cfg
}
