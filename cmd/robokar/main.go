package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robokar/go-robokar/internal/config"
	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/control"
	"github.com/robokar/go-robokar/pkg/hal"
	"github.com/robokar/go-robokar/pkg/sim"
)

func main() {
	// Command line flags
	boardName := flag.String("board", config.Board(), "board backend: sim, serial or grove")
	port := flag.String("port", config.SerialPort(), "serial device for the serial board")
	baud := flag.Int("baud", config.SerialBaud(), "baud rate for the serial board")
	trackPath := flag.String("track", config.TrackPath(), "track file for the sim board (empty: built-in course)")
	tunePath := flag.String("config", config.TuningPath(), "YAML tuning overlay (empty: defaults)")
	logLevel := flag.String("log", config.LogLevel("info"), "log level: debug, info, warn or error")
	basic := flag.Bool("basic-recovery", false, "single-flag obstacle behavior, no turn/seek recovery")
	flag.Parse()

	log.Init(*logLevel)

	cfg := control.DefaultConfig()
	if *basic {
		cfg = cfg.WithBasicRecovery()
	}
	if *tunePath != "" {
		var err error
		if cfg, err = cfg.LoadFile(*tunePath); err != nil {
			log.Error("tuning overlay rejected", "err", err)
			os.Exit(1)
		}
	}

	fmt.Println("🤖 RoboKar Course Controller")
	fmt.Printf("   Board: %s\n", *boardName)
	if *tunePath != "" {
		fmt.Printf("   Tune:  %s\n", *tunePath)
	}
	fmt.Println()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	board, simRobot, err := buildBoard(*boardName, *port, *baud, *trackPath)
	if err != nil {
		log.Error("board setup failed", "board", *boardName, "err", err)
		os.Exit(1)
	}
	if err := board.Open(); err != nil {
		log.Error("board open failed", "board", *boardName, "err", err)
		os.Exit(1)
	}
	defer board.Close()
	if simRobot != nil {
		go simRobot.Run(ctx)
	}

	// Boot sequence: park, chime, hold for the go signal.
	board.SetMotorSpeeds(0, 0)
	board.Sound(1, 0)
	fmt.Println("✅ Board ready - waiting for start")
	if err := board.WaitForStart(ctx); err != nil {
		fmt.Println("Interrupted before start")
		return
	}

	sup := control.NewSupervisor(board, cfg)
	fmt.Printf("🏁 Run %s under way\n", sup.RunID())
	sup.Run(ctx)

	snap := sup.Snapshot()
	fmt.Printf("📋 Final: checkpoint %s, score %d\n", snap.Checkpoint, snap.State.Score)
}

// buildBoard picks the backend. The sim robot is returned separately
// so the caller can drive its model loop.
func buildBoard(name, port string, baud int, trackPath string) (hal.Board, *sim.Robot, error) {
	switch name {
	case "sim":
		track := sim.DefaultTrack()
		if trackPath != "" {
			var err error
			if track, err = sim.LoadTrack(trackPath); err != nil {
				return nil, nil, err
			}
		}
		params := sim.DefaultParams()
		params.AutoStart = true
		robot := sim.NewRobot(track, params)
		return robot, robot, nil
	case "serial":
		return hal.NewSerialBoard(port, baud), nil, nil
	case "grove":
		return hal.NewGroveBoard(hal.DefaultGrovePins()), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown board %q", name)
	}
}
