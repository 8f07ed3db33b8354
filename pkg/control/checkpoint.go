package control

// Checkpoint identifies how far along the course the robot has come.
// Progression is strictly forward, one step per full-bar crossing:
// Start, then A through F, then Done. Done is terminal.
type Checkpoint int

const (
	CheckpointStart Checkpoint = iota
	CheckpointA
	CheckpointB
	CheckpointC
	CheckpointD
	CheckpointE
	CheckpointF
	CheckpointDone
)

var checkpointNames = [...]string{
	CheckpointStart: "start",
	CheckpointA:     "A",
	CheckpointB:     "B",
	CheckpointC:     "C",
	CheckpointD:     "D",
	CheckpointE:     "E",
	CheckpointF:     "F",
	CheckpointDone:  "done",
}

func (c Checkpoint) String() string {
	if c < CheckpointStart || c > CheckpointDone {
		return "unknown"
	}
	return checkpointNames[c]
}

// Next returns the checkpoint after c. Done stays Done.
func (c Checkpoint) Next() Checkpoint {
	if c >= CheckpointDone {
		return CheckpointDone
	}
	return c + 1
}

// Terminal reports whether the course is complete.
func (c Checkpoint) Terminal() bool { return c >= CheckpointDone }

// checkpointAward describes the side effects of arriving at a
// checkpoint: points, the optional first-marker bonus, and what the
// LED does. finish additionally holds the robot stopped with the LED
// lit.
type checkpointAward struct {
	points    int
	l1Bonus   int
	toggleLED bool
	finish    bool
}

// awards is keyed by the checkpoint being entered. Crossing the first
// bar only arms the course, so A carries no points.
var awards = map[Checkpoint]checkpointAward{
	CheckpointA:    {},
	CheckpointB:    {points: 5, l1Bonus: 10},
	CheckpointC:    {points: 5, toggleLED: true},
	CheckpointD:    {points: 5, toggleLED: true},
	CheckpointE:    {points: 5, toggleLED: true},
	CheckpointF:    {points: 5, toggleLED: true},
	CheckpointDone: {points: 5, finish: true},
}
