package main

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mechlab/griplink/gripper"
)

// helpDumpTimeout bounds how long the help command collects listing lines.
const helpDumpTimeout = 1 * time.Second

const menuText = `commands:
  <number>   move gripper (0.0 = open, 1.0 = closed)
  status     read servo status
  position   read current position
  calibrate  run endpoint calibration
  test       run a 5-step sweep
  help       show the device's own command listing
  quit       exit`

// runSession connects to the gripper and runs the interactive prompt loop
// until quit, EOF, or interrupt.
func runSession(ctx context.Context, cfg *gripper.ConnectionConfig) error {
	ctrl, err := gripper.NewController(ctx, cfg)
	if err != nil {
		return err
	}

	if err := ctrl.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer ctrl.Disconnect() //nolint:errcheck // Disconnect never fails

	fmt.Println(menuText)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("gripper> ")

		if !scanner.Scan() {
			fmt.Println()

			return scanner.Err()
		}

		if ctx.Err() != nil {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if quit := dispatch(ctrl, input); quit {
			return nil
		}
	}
}

// dispatch executes one menu command; it returns true when the session
// should end.
func dispatch(ctrl *gripper.Controller, input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		return true

	case "status":
		if status, ok := ctrl.GetStatus(); ok {
			fmt.Println("status:", status)
		} else {
			fmt.Println("status unavailable")
		}

	case "position":
		if angle, ok := ctrl.ReadPosition(); ok {
			fmt.Printf("position: %.2f° (normalized %.3f)\n", angle, ctrl.Normalize(angle))
		} else {
			fmt.Println("position unavailable")
		}

	case "calibrate":
		if openPos, closedPos, ok := ctrl.Calibrate(); ok {
			fmt.Printf("calibration: open=%.3f closed=%.3f\n", openPos, closedPos)
		} else {
			fmt.Println("calibration failed")
		}

	case "test":
		printTestResults(ctrl.TestSequence(5))

	case "help":
		// No match predicate: collect the whole listing until the wait elapses.
		if lines, err := ctrl.Conn().SendAndAwait("help", nil, helpDumpTimeout); err == nil {
			for _, line := range lines {
				fmt.Println("  ", line)
			}
		} else {
			fmt.Println("device did not answer:", err)
		}

	default:
		value, err := strconv.ParseFloat(input, 64)
		if err != nil {
			fmt.Println("unknown command:", input)
			fmt.Println(menuText)

			break
		}

		moveTo(ctrl, value)
	}

	return false
}

func moveTo(ctrl *gripper.Controller, value float64) {
	actual, ok, err := ctrl.MoveTo(value, 0)
	switch {
	case err != nil:
		fmt.Println("move rejected:", err)
	case !ok:
		fmt.Println("move timed out or failed")
	default:
		fmt.Printf("moved: target=%.3f actual=%.3f error=%.3f\n",
			value, actual, math.Abs(actual-value))
	}
}

func printTestResults(results []gripper.StepResult) {
	fmt.Println("test results:")
	for i, r := range results {
		if r.OK {
			fmt.Printf("  %d: %.3f -> %.3f (error %.3f)\n",
				i+1, r.Target, r.Actual, math.Abs(r.Actual-r.Target))
		} else {
			fmt.Printf("  %d: %.3f -> failed\n", i+1, r.Target)
		}
	}
}
