// Command trackview runs the controller against the simulated robot
// and draws the course live in the terminal: the taped line, the
// checkpoint bars, the light markers, obstacles and the robot itself,
// with a status column for the run.
//
// Keys: space presses the start button, o drops an obstacle ahead of
// the robot, c clears it, q or Escape quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/robokar/go-robokar/internal/config"
	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/control"
	"github.com/robokar/go-robokar/pkg/sim"
)

const (
	frameInterval = 50 * time.Millisecond
	hudWidth      = 28
)

func main() {
	trackPath := flag.String("track", config.TrackPath(), "track file (empty: built-in course)")
	tunePath := flag.String("config", config.TuningPath(), "YAML tuning overlay (empty: defaults)")
	basic := flag.Bool("basic-recovery", false, "single-flag obstacle behavior, no turn/seek recovery")
	flag.Parse()

	// The screen owns stdout, so keep logging quiet.
	log.Init(config.LogLevel("error"))

	if err := run(*trackPath, *tunePath, *basic); err != nil {
		fmt.Fprintln(os.Stderr, "trackview:", err)
		os.Exit(1)
	}
}

func run(trackPath, tunePath string, basic bool) error {
	track := sim.DefaultTrack()
	if trackPath != "" {
		var err error
		if track, err = sim.LoadTrack(trackPath); err != nil {
			return err
		}
	}

	cfg := control.DefaultConfig()
	if basic {
		cfg = cfg.WithBasicRecovery()
	}
	if tunePath != "" {
		var err error
		if cfg, err = cfg.LoadFile(tunePath); err != nil {
			return err
		}
	}

	robot := sim.NewRobot(track, sim.DefaultParams())
	if err := robot.Open(); err != nil {
		return err
	}
	defer robot.Close()
	sup := control.NewSupervisor(robot, cfg)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("new screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go robot.Run(ctx)
	go func() {
		robot.Sound(1, 0)
		if err := robot.WaitForStart(ctx); err != nil {
			return
		}
		sup.Run(ctx)
	}()

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			draw(screen, track, robot.Status(), sup.Snapshot())
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
					return nil
				case ev.Rune() == ' ':
					robot.PressStart()
				case ev.Rune() == 'o':
					robot.DropObstacleAhead()
				case ev.Rune() == 'c':
					robot.ClearDroppedObstacle()
				}
			}
		}
	}
}

// viewport maps world coordinates onto a screen cell region.
type viewport struct {
	min, max   sim.Point
	x0, y0     int
	cols, rows int
}

func newViewport(track *sim.Track, cols, rows int) viewport {
	min, max := track.Bounds()
	const margin = 0.15
	min.X -= margin
	min.Y -= margin
	max.X += margin
	max.Y += margin
	return viewport{min: min, max: max, x0: 0, y0: 0, cols: cols, rows: rows}
}

// cell converts a world point to screen coordinates, flipping the
// vertical axis so world up is screen up.
func (v viewport) cell(p sim.Point) (int, int) {
	spanX := v.max.X - v.min.X
	spanY := v.max.Y - v.min.Y
	x := v.x0 + int((p.X-v.min.X)/spanX*float64(v.cols-1)+0.5)
	y := v.y0 + int((v.max.Y-p.Y)/spanY*float64(v.rows-1)+0.5)
	return x, y
}

func draw(screen tcell.Screen, track *sim.Track, st sim.Status, snap control.RunSnapshot) {
	screen.Clear()
	width, height := screen.Size()
	mapCols := width - hudWidth
	if mapCols < 10 || height < 10 {
		drawText(screen, 0, 0, tcell.StyleDefault, "terminal too small")
		screen.Show()
		return
	}
	vp := newViewport(track, mapCols, height)

	lineStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	barStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	lightStyle := tcell.StyleDefault.Foreground(tcell.ColorOrange)
	obstacleStyle := tcell.StyleDefault.Foreground(tcell.ColorRed)
	robotStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)

	// Centerline, sampled finely enough for every cell.
	length := track.Length()
	for d := 0.0; d <= length; d += 0.02 {
		x, y := vp.cell(track.PointAt(d))
		screen.SetContent(x, y, '·', nil, lineStyle)
	}
	for i, b := range track.Bars {
		x, y := vp.cell(track.PointAt(b.At))
		screen.SetContent(x, y, '=', nil, barStyle)
		if i == 0 {
			drawText(screen, x+1, y, barStyle, "start")
		}
	}
	for _, l := range track.Lights {
		x, y := vp.cell(sim.Point{X: l.X, Y: l.Y})
		screen.SetContent(x, y, '*', nil, lightStyle)
		drawText(screen, x+1, y, lightStyle, l.Name)
	}
	for _, o := range track.Obstacles {
		x, y := vp.cell(sim.Point{X: o.X, Y: o.Y})
		screen.SetContent(x, y, 'O', nil, obstacleStyle)
	}
	if st.Dropped != nil {
		x, y := vp.cell(sim.Point{X: st.Dropped.X, Y: st.Dropped.Y})
		screen.SetContent(x, y, 'O', nil, obstacleStyle)
	}

	rx, ry := vp.cell(sim.Point{X: st.X, Y: st.Y})
	screen.SetContent(rx, ry, headingGlyph(st.Heading), nil, robotStyle)

	drawHUD(screen, mapCols+1, st, snap)
	screen.Show()
}

// headingGlyph picks an arrow for the robot's direction of travel.
func headingGlyph(heading float64) rune {
	c, s := math.Cos(heading), math.Sin(heading)
	if math.Abs(c) >= math.Abs(s) {
		if c >= 0 {
			return '>'
		}
		return '<'
	}
	if s >= 0 {
		return '^'
	}
	return 'v'
}

func drawHUD(screen tcell.Screen, x int, st sim.Status, snap control.RunSnapshot) {
	plain := tcell.StyleDefault
	strong := tcell.StyleDefault.Bold(true)
	alert := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	row := 1
	put := func(style tcell.Style, format string, args ...any) {
		drawText(screen, x, row, style, fmt.Sprintf(format, args...))
		row++
	}

	put(strong, "RoboKar  %s", st.SimTime.Truncate(100*time.Millisecond))
	put(plain, "run %.8s", snap.RunID)
	row++
	put(strong, "checkpoint  %s", snap.Checkpoint)
	put(strong, "score       %d", snap.State.Score)
	row++
	put(plain, "set   %4d / %-4d", snap.State.LeftSpeed, snap.State.RightSpeed)
	put(plain, "wheel %4.2f / %-4.2f", st.LeftVel, st.RightVel)
	put(plain, "line  %03b   light %d", st.Line, st.Light)
	put(plain, "led %s   horn %d", onOff(st.LED), st.HornPulses)
	row++
	if snap.State.ObstacleActive {
		put(alert, "AVOIDING OBSTACLE")
	} else if st.Prox {
		put(alert, "obstacle ahead")
	} else {
		put(plain, "way clear")
	}
	put(plain, "L1 %s  L2 %s", seenMark(snap.SeenL1), seenMark(snap.SeenL2))
	if snap.ReturnedToTrack {
		put(plain, "return maneuver done")
	}
	row++
	put(plain, "space start  o obstacle")
	put(plain, "c clear      q quit")
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, s string) {
	for i, r := range s {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func seenMark(v bool) string {
	if v {
		return "seen"
	}
	return "-"
}
