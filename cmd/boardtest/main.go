// Command boardtest exercises a robot board on the bench: it streams
// the sensor picture and can blip the actuators, so wiring problems
// show up before the robot is on a course.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robokar/go-robokar/internal/config"
	"github.com/robokar/go-robokar/internal/log"
	"github.com/robokar/go-robokar/pkg/hal"
)

func main() {
	boardName := flag.String("board", config.Board(), "board backend: serial or grove")
	port := flag.String("port", config.SerialPort(), "serial device for the serial board")
	baud := flag.Int("baud", config.SerialBaud(), "baud rate for the serial board")
	duration := flag.Duration("duration", 10*time.Second, "how long to stream readings")
	actuate := flag.Bool("actuate", false, "blip the LED, horn and wheels first")
	logLevel := flag.String("log", config.LogLevel("info"), "log level")
	flag.Parse()

	log.Init(*logLevel)

	var board hal.Board
	switch *boardName {
	case "serial":
		board = hal.NewSerialBoard(*port, *baud)
	case "grove":
		board = hal.NewGroveBoard(hal.DefaultGrovePins())
	default:
		fmt.Fprintf(os.Stderr, "boardtest: unknown board %q (want serial or grove)\n", *boardName)
		os.Exit(2)
	}

	if err := board.Open(); err != nil {
		fmt.Fprintln(os.Stderr, "boardtest:", err)
		os.Exit(1)
	}
	defer board.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if *actuate {
		fmt.Println("blip: LED")
		board.SetLED(true)
		time.Sleep(300 * time.Millisecond)
		board.SetLED(false)

		fmt.Println("blip: horn x2")
		board.Sound(2, 200*time.Millisecond)
		time.Sleep(time.Second)

		fmt.Println("blip: wheels forward, then reverse")
		board.SetMotorSpeeds(30, 30)
		time.Sleep(500 * time.Millisecond)
		board.SetMotorSpeeds(-30, -30)
		time.Sleep(500 * time.Millisecond)
		board.SetMotorSpeeds(0, 0)
	}

	fmt.Printf("streaming sensors for %v (Ctrl-C stops)\n", *duration)
	deadline := time.After(*duration)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			fmt.Printf("line %03b  prox %-5v  light %3d\n",
				board.ReadLine(), board.ReadProximity(), board.ReadLight())
		}
	}
}
