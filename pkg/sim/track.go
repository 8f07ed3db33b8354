// Package sim provides a software robot and course for running the
// controller without hardware: a YAML track description, a
// differential-drive model with servoed wheels, and synthetic sensor
// readings derived from the robot's pose on the track.
package sim

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultBarRadius covers the whole sensor spread so a bar lights all
// three line elements at once.
const defaultBarRadius = 0.06

// Point is a position on the course plane, in meters.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Bar is a checkpoint stripe laid across the line, placed by distance
// along the centerline from the first waypoint.
type Bar struct {
	At     float64 `yaml:"at"`
	Radius float64 `yaml:"radius,omitempty"`
}

// LightZone is a lamp the light sensor picks up, brightest at its
// center and fading linearly to ambient at its radius.
type LightZone struct {
	Name      string  `yaml:"name"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Radius    float64 `yaml:"radius"`
	Intensity int     `yaml:"intensity"`
}

// Obstacle is a solid disc the proximity sensor can see.
type Obstacle struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// Track is a course: a taped centerline through ordered waypoints,
// checkpoint bars along it, light zones beside it and optional
// obstacles on it.
type Track struct {
	Name      string      `yaml:"name"`
	LineWidth float64     `yaml:"line_width"`
	Loop      bool        `yaml:"loop"`
	Waypoints []Point     `yaml:"waypoints"`
	Bars      []Bar       `yaml:"bars"`
	Lights    []LightZone `yaml:"lights"`
	Obstacles []Obstacle  `yaml:"obstacles"`
}

// LoadTrack reads and validates a YAML track file.
func LoadTrack(path string) (*Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	var t Track
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse track %s: %w", path, err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("track %s: %w", path, err)
	}
	return &t, nil
}

func (t *Track) applyDefaults() {
	if t.Name == "" {
		t.Name = "unnamed"
	}
	if t.LineWidth == 0 {
		t.LineWidth = 0.02
	}
	for i := range t.Bars {
		if t.Bars[i].Radius == 0 {
			t.Bars[i].Radius = defaultBarRadius
		}
	}
}

// Validate reports the first problem with the course geometry, or nil.
func (t *Track) Validate() error {
	if len(t.Waypoints) < 2 {
		return fmt.Errorf("need at least 2 waypoints, have %d", len(t.Waypoints))
	}
	if t.LineWidth <= 0 || t.LineWidth > 0.2 {
		return fmt.Errorf("line_width %v outside (0, 0.2]", t.LineWidth)
	}
	total := t.Length()
	if total <= 0 {
		return fmt.Errorf("zero-length course")
	}
	for i, b := range t.Bars {
		if b.At < 0 || b.At > total {
			return fmt.Errorf("bar %d at %v outside course length %v", i, b.At, total)
		}
		if b.Radius <= 0 {
			return fmt.Errorf("bar %d radius %v must be positive", i, b.Radius)
		}
	}
	for i, l := range t.Lights {
		if l.Radius <= 0 {
			return fmt.Errorf("light %q (%d) radius must be positive", l.Name, i)
		}
		if l.Intensity < 0 || l.Intensity > 100 {
			return fmt.Errorf("light %q intensity %d outside 0..100", l.Name, l.Intensity)
		}
	}
	for i, o := range t.Obstacles {
		if o.Radius <= 0 {
			return fmt.Errorf("obstacle %d radius must be positive", i)
		}
	}
	return nil
}

// points returns the waypoint list with the loop closed if asked for.
func (t *Track) points() []Point {
	pts := t.Waypoints
	if t.Loop && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
		closed := make([]Point, len(pts)+1)
		copy(closed, pts)
		closed[len(pts)] = pts[0]
		return closed
	}
	return pts
}

// Length returns the total centerline length in meters.
func (t *Track) Length() float64 {
	pts := t.points()
	var total float64
	for i := 0; i+1 < len(pts); i++ {
		total += dist(pts[i], pts[i+1])
	}
	return total
}

// PointAt returns the centerline position d meters from the start,
// clamped to the course.
func (t *Track) PointAt(d float64) Point {
	pts := t.points()
	if d <= 0 {
		return pts[0]
	}
	for i := 0; i+1 < len(pts); i++ {
		seg := dist(pts[i], pts[i+1])
		if d <= seg && seg > 0 {
			f := d / seg
			return Point{
				X: pts[i].X + f*(pts[i+1].X-pts[i].X),
				Y: pts[i].Y + f*(pts[i+1].Y-pts[i].Y),
			}
		}
		d -= seg
	}
	return pts[len(pts)-1]
}

// DistanceTo returns how far p lies from the centerline and the
// arc-length position of the closest centerline point.
func (t *Track) DistanceTo(p Point) (d, along float64) {
	pts := t.points()
	best := math.Inf(1)
	var bestAlong, acc float64
	for i := 0; i+1 < len(pts); i++ {
		segDist, frac := pointSegment(p, pts[i], pts[i+1])
		segLen := dist(pts[i], pts[i+1])
		if segDist < best {
			best = segDist
			bestAlong = acc + frac*segLen
		}
		acc += segLen
	}
	return best, bestAlong
}

// OnTape reports whether p sits on the taped line or on a checkpoint
// bar.
func (t *Track) OnTape(p Point) bool {
	if d, _ := t.DistanceTo(p); d <= t.LineWidth/2 {
		return true
	}
	for _, b := range t.Bars {
		if dist(p, t.PointAt(b.At)) <= b.Radius {
			return true
		}
	}
	return false
}

// Start returns the course start pose: the first waypoint and the
// heading of the first segment.
func (t *Track) Start() (p Point, heading float64) {
	pts := t.points()
	p = pts[0]
	heading = math.Atan2(pts[1].Y-pts[0].Y, pts[1].X-pts[0].X)
	return p, heading
}

// Bounds returns the axis-aligned box enclosing everything on the
// course, for displays.
func (t *Track) Bounds() (min, max Point) {
	min = Point{math.Inf(1), math.Inf(1)}
	max = Point{math.Inf(-1), math.Inf(-1)}
	grow := func(x, y, pad float64) {
		min.X = math.Min(min.X, x-pad)
		min.Y = math.Min(min.Y, y-pad)
		max.X = math.Max(max.X, x+pad)
		max.Y = math.Max(max.Y, y+pad)
	}
	for _, p := range t.Waypoints {
		grow(p.X, p.Y, 0)
	}
	for _, l := range t.Lights {
		grow(l.X, l.Y, l.Radius)
	}
	for _, o := range t.Obstacles {
		grow(o.X, o.Y, o.Radius)
	}
	return min, max
}

// DefaultTrack returns the built-in practice course: a chamfered
// rectangle loop with the seven checkpoint bars and both light
// markers.
func DefaultTrack() *Track {
	t := &Track{
		Name:      "practice",
		LineWidth: 0.02,
		Loop:      true,
		Waypoints: []Point{
			{0.0, 0.0},
			{2.4, 0.0},
			{3.0, 0.6},
			{3.0, 1.8},
			{2.4, 2.4},
			{0.6, 2.4},
			{0.0, 1.8},
			{0.0, 0.6},
		},
		Bars: []Bar{
			{At: 0.25}, {At: 1.6}, {At: 3.0}, {At: 4.4},
			{At: 5.8}, {At: 7.2}, {At: 8.6},
		},
		Lights: []LightZone{
			{Name: "L1", X: 2.3, Y: -0.25, Radius: 0.3, Intensity: 95},
			{Name: "L2", X: 2.6, Y: 2.65, Radius: 0.3, Intensity: 95},
		},
	}
	t.applyDefaults()
	return t
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// pointSegment returns the distance from q to segment ab and the
// fraction along ab of the closest point.
func pointSegment(q, a, b Point) (d, frac float64) {
	abx, aby := b.X-a.X, b.Y-a.Y
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return dist(q, a), 0
	}
	frac = ((q.X-a.X)*abx + (q.Y-a.Y)*aby) / l2
	frac = math.Max(0, math.Min(1, frac))
	px, py := a.X+frac*abx, a.Y+frac*aby
	return math.Hypot(q.X-px, q.Y-py), frac
}
