package hal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/robokar/go-robokar/internal/log"
)

// Line protocol spoken to the sensor/driver co-processor, one command
// per newline-terminated line:
//
//	host -> board   M <left> <right>   wheel setpoints, -100..100
//	                L <0|1>            LED set
//	                T                  LED toggle
//	                H <pulses> <gapMs> horn pulse train
//	                Q                  sensor query
//	board -> host   R <firmware>       greeting after reset
//	                S <line> <prox> <light> <button>  reply to Q
const (
	serialPollInterval = 20 * time.Millisecond
	serialWarnInterval = 5 * time.Second
	handshakeAttempts  = 5
	startPollInterval  = 50 * time.Millisecond
	serialOpenTimeout  = time.Second
)

var _ Board = (*SerialBoard)(nil)

// SerialBoard talks to a co-processor board over a UART. A background
// poller refreshes a cached sensor picture; reads serve the cache, so
// a flaky link degrades to stale readings instead of failures. Faults
// are counted and warned about at a limited rate.
type SerialBoard struct {
	portName string
	baud     int

	mu   sync.Mutex
	rw   io.ReadWriter
	port *serial.Port
	r    *bufio.Reader
	w    *bufio.Writer

	line   uint8
	prox   bool
	light  int
	button bool

	faults   int
	lastWarn time.Time

	pollInterval time.Duration
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewSerialBoard prepares a board on the named port. Nothing is opened
// until Open.
func NewSerialBoard(portName string, baud int) *SerialBoard {
	return &SerialBoard{
		portName:     portName,
		baud:         baud,
		pollInterval: serialPollInterval,
	}
}

// newSerialBoardOn wraps an existing transport, for tests and for
// pseudo-terminal links.
func newSerialBoardOn(rw io.ReadWriter) *SerialBoard {
	return &SerialBoard{
		rw:           rw,
		pollInterval: serialPollInterval,
	}
}

// Open connects the transport, performs the handshake, leaves the
// robot safe and starts the sensor poller.
func (b *SerialBoard) Open() error {
	if b.rw == nil {
		port, err := serial.OpenPort(&serial.Config{
			Name:        b.portName,
			Baud:        b.baud,
			ReadTimeout: serialOpenTimeout,
		})
		if err != nil {
			return fmt.Errorf("open serial port %s: %w", b.portName, err)
		}
		b.port = port
		b.rw = port
	}
	b.r = bufio.NewReader(b.rw)
	b.w = bufio.NewWriter(b.rw)

	if err := b.handshake(); err != nil {
		b.closeTransport()
		return err
	}

	b.mu.Lock()
	b.writeLine("M 0 0")
	b.writeLine("L 0")
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.pollLoop(ctx)
	log.Info("serial board up", "port", b.portName)
	return nil
}

// handshake probes the co-processor until it answers with a greeting
// or a sensor reply.
func (b *SerialBoard) handshake() error {
	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		b.mu.Lock()
		b.writeLine("Q")
		reply, err := b.r.ReadString('\n')
		b.mu.Unlock()
		if err != nil {
			continue
		}
		reply = strings.TrimSpace(reply)
		if strings.HasPrefix(reply, "R ") {
			log.Info("co-processor greeting", "firmware", strings.TrimPrefix(reply, "R "))
			return nil
		}
		if strings.HasPrefix(reply, "S ") {
			b.storeSensors(reply)
			return nil
		}
	}
	return fmt.Errorf("no response from co-processor on %s", b.portName)
}

// Close stops the poller, parks the robot and releases the port.
func (b *SerialBoard) Close() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	if b.w != nil {
		b.mu.Lock()
		b.writeLine("M 0 0")
		b.writeLine("L 0")
		b.mu.Unlock()
	}
	b.closeTransport()
	return nil
}

func (b *SerialBoard) closeTransport() {
	if b.port != nil {
		b.port.Close()
		b.port = nil
	}
}

// pollLoop keeps the sensor cache fresh.
func (b *SerialBoard) pollLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce()
		}
	}
}

// pollOnce runs one query/reply transaction.
func (b *SerialBoard) pollOnce() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.writeLine("Q") {
		return
	}
	reply, err := b.r.ReadString('\n')
	if err != nil {
		b.fault("sensor poll read", err)
		return
	}
	b.storeSensors(strings.TrimSpace(reply))
}

// storeSensors parses an "S line prox light button" reply into the
// cache. Callers hold the lock (or run before the poller starts).
func (b *SerialBoard) storeSensors(reply string) {
	fields := strings.Fields(reply)
	if len(fields) != 5 || fields[0] != "S" {
		b.fault("sensor reply", fmt.Errorf("malformed %q", reply))
		return
	}
	vals := make([]int, 4)
	for i, f := range fields[1:] {
		v, err := strconv.Atoi(f)
		if err != nil {
			b.fault("sensor reply", fmt.Errorf("field %q in %q", f, reply))
			return
		}
		vals[i] = v
	}
	if vals[0] < 0 || vals[0] > 7 {
		b.fault("sensor reply", fmt.Errorf("line code %d out of range", vals[0]))
		return
	}
	b.line = uint8(vals[0])
	b.prox = vals[1] != 0
	b.light = clampLight(vals[2])
	b.button = vals[3] != 0
}

func clampLight(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// writeLine sends one command line. Callers hold the lock.
func (b *SerialBoard) writeLine(s string) bool {
	if _, err := b.w.WriteString(s + "\n"); err != nil {
		b.fault("write", err)
		return false
	}
	if err := b.w.Flush(); err != nil {
		b.fault("flush", err)
		return false
	}
	return true
}

// fault counts a transport problem and warns at a limited rate.
// Callers hold the lock.
func (b *SerialBoard) fault(op string, err error) {
	b.faults++
	if time.Since(b.lastWarn) >= serialWarnInterval {
		b.lastWarn = time.Now()
		log.Warn("serial board fault", "op", op, "err", err, "total", b.faults)
	}
}

// Faults returns how many transport problems have been absorbed.
func (b *SerialBoard) Faults() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.faults
}

func (b *SerialBoard) ReadLine() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line
}

func (b *SerialBoard) ReadProximity() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prox
}

func (b *SerialBoard) ReadLight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.light
}

func (b *SerialBoard) SetMotorSpeeds(left, right int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLine(fmt.Sprintf("M %d %d", left, right))
}

func (b *SerialBoard) SetLED(on bool) {
	v := 0
	if on {
		v = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLine(fmt.Sprintf("L %d", v))
}

func (b *SerialBoard) ToggleLED() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLine("T")
}

func (b *SerialBoard) Sound(pulses int, gap time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLine(fmt.Sprintf("H %d %d", pulses, gap.Milliseconds()))
}

// WaitForStart watches the cached button state.
func (b *SerialBoard) WaitForStart(ctx context.Context) error {
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.mu.Lock()
			pressed := b.button
			b.mu.Unlock()
			if pressed {
				return nil
			}
		}
	}
}
