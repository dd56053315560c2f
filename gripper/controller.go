package gripper

import (
	"context"
	"time"

	"github.com/mechlab/griplink/logger"
)

const (
	// calibrateMoveTime is the per-endpoint move duration during
	// calibration, longer than the default so the servo settles.
	calibrateMoveTime = 3 * time.Second

	// calibratePause is the pause between the open and close calibration moves.
	calibratePause = 1 * time.Second

	// testStepPause is the pause between steps of a test sequence.
	testStepPause = 500 * time.Millisecond
)

// Controller is the stateful gripper abstraction: it composes the
// Connection's correlator with the protocol codec into the domain
// operations (status, position, move, calibrate).
//
// Timeouts and parse misses are reported as absent values (ok == false),
// never as panics or errors; the presentation layer decides how to surface
// them. Errors are reserved for validation and link failures.
type Controller struct {
	conn   *Connection
	cfg    *ConnectionConfig
	logger logger.Logger
}

// NewController creates a Controller and its underlying Connection from cfg.
func NewController(ctx context.Context, cfg *ConnectionConfig) (*Controller, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Controller{
		conn:   conn,
		cfg:    cfg,
		logger: cfg.logger,
	}, nil
}

// Conn returns the underlying Connection.
func (g *Controller) Conn() *Connection {
	return g.conn
}

// Connect opens the connection and, when enabled, verifies the device is
// alive with a help probe. A failed probe is logged but not fatal: the
// serial link itself is up, and the device may still be booting.
func (g *Controller) Connect() error {
	if err := g.conn.Open(); err != nil {
		return err
	}

	if g.cfg.probeOnConnect && !g.Probe() {
		g.logger.Warn("gripper: liveness probe got no reply, device may still be booting")
	}

	return nil
}

// Disconnect closes the connection. Idempotent.
func (g *Controller) Disconnect() error {
	return g.conn.Close()
}

// State returns the session state.
func (g *Controller) State() ConnState {
	return g.conn.State()
}

// Healthy reports whether the session is connected and its line reader is
// still draining the link.
func (g *Controller) Healthy() bool {
	return g.conn.Healthy()
}

// Probe sends the help command and reports whether the device answered with
// its command listing. It is the liveness check used after connect.
func (g *Controller) Probe() bool {
	lines, err := g.conn.SendAndAwait(cmdHelp, matchMarker(markerHelp), g.cfg.probeTimeout)
	if err != nil {
		return false
	}

	for _, line := range lines {
		if matchMarker(markerHelp)(line) {
			return true
		}
	}

	return false
}

// GetStatus queries the servo and returns its parsed status.
// ok is false on timeout, link error, or an unparseable reply.
func (g *Controller) GetStatus() (ServoStatus, bool) {
	lines, err := g.conn.SendAndAwait(
		FormatStatusQuery(g.cfg.servoID),
		matchMarker(markerStatus),
		g.cfg.statusTimeout,
	)
	if err != nil {
		return ServoStatus{}, false
	}

	for _, line := range lines {
		if status, ok := ParseStatus(line); ok {
			return status, true
		}
	}

	g.logger.Warn("gripper: no parseable status reply", "lines", len(lines))

	return ServoStatus{}, false
}

// ReadPosition queries the servo's current angle in degrees.
// ok is false on timeout, link error, or an unparseable reply.
func (g *Controller) ReadPosition() (float64, bool) {
	lines, err := g.conn.SendAndAwait(
		FormatPositionQuery(g.cfg.servoID),
		matchMarker(markerPosition),
		g.cfg.positionTimeout,
	)
	if err != nil {
		return 0, false
	}

	for _, line := range lines {
		if matchMarker(markerPosition)(line) {
			if angle, ok := ParsePosition(line); ok {
				return angle, true
			}
		}
	}

	g.logger.Warn("gripper: no parseable position reply", "lines", len(lines))

	return 0, false
}

// ReadPositionNormalized queries the current position and maps it through
// the configured angle bounds to a normalized value, clamped to [0, 1].
func (g *Controller) ReadPositionNormalized() (float64, bool) {
	angle, ok := g.ReadPosition()
	if !ok {
		return 0, false
	}

	return g.Normalize(angle), true
}

// Normalize maps a servo angle (degrees) to the normalized position through
// the configured bounds, clamped to [0, 1].
func (g *Controller) Normalize(angle float64) float64 {
	v := (angle - g.cfg.angleMin) / (g.cfg.angleMax - g.cfg.angleMin)

	return min(1.0, max(0.0, v))
}

// MoveTo commands the gripper to the normalized position v (0 = fully open,
// 1 = fully closed) over moveTime; moveTime <= 0 selects the configured
// default.
//
// The reply wait is bounded by 2x moveTime plus the configured slack:
// physical actuation plus the round trip must complete within a bounded
// multiple of the commanded duration.
//
// It returns the actual normalized position reported by the device. err is
// non-nil only for validation (ErrValueOutOfRange, before anything is
// written) and link failures; a timeout or missing result is ok == false.
func (g *Controller) MoveTo(v float64, moveTime time.Duration) (float64, bool, error) {
	if moveTime <= 0 {
		moveTime = g.cfg.defaultMoveTime
	}

	cmd, err := FormatMove(g.cfg.servoID, v, moveTime)
	if err != nil {
		return 0, false, err
	}

	timeout := 2*moveTime + g.cfg.moveSlack

	lines, err := g.conn.SendAndAwait(cmd, matchMarker(markerMoveResult), timeout)
	if err != nil {
		return 0, false, err
	}

	for _, line := range lines {
		if actual, ok := ParseMoveResult(line); ok {
			g.logger.Debug("gripper: move complete", "target", v, "actual", actual)

			return actual, true, nil
		}
	}

	for _, line := range lines {
		if IsErrorLine(line) {
			g.logger.Error("gripper: device rejected move", "target", v, "reply", line)

			return 0, false, nil
		}
	}

	g.logger.Warn("gripper: move got no result before timeout", "target", v, "timeout", timeout)

	return 0, false, nil
}

// Calibrate drives the gripper to both endpoints and returns the actual
// normalized positions the device reported at fully open and fully closed.
// ok is false if either endpoint move failed.
func (g *Controller) Calibrate() (openPos, closedPos float64, ok bool) {
	g.logger.Info("gripper: calibration started")

	openPos, openOK, err := g.MoveTo(0.0, calibrateMoveTime)
	if err != nil {
		g.logger.Error("gripper: calibration open move failed", "error", err)

		return 0, 0, false
	}

	time.Sleep(calibratePause)

	closedPos, closedOK, err := g.MoveTo(1.0, calibrateMoveTime)
	if err != nil {
		g.logger.Error("gripper: calibration close move failed", "error", err)

		return 0, 0, false
	}

	ok = openOK && closedOK
	g.logger.Info("gripper: calibration finished",
		"open", openPos, "closed", closedPos, "ok", ok)

	return openPos, closedPos, ok
}

// StepResult is the outcome of one step of a test sequence.
type StepResult struct {
	// Target is the commanded normalized position.
	Target float64
	// Actual is the position the device reported; zero when OK is false.
	Actual float64
	// OK is false when the step timed out or failed.
	OK bool
}

// TestSequence moves the gripper through steps evenly spaced targets from
// fully open to fully closed with the default move time, pausing briefly
// between steps. steps below 2 is treated as 2.
func (g *Controller) TestSequence(steps int) []StepResult {
	if steps < 2 {
		steps = 2
	}

	results := make([]StepResult, 0, steps)

	for i := 0; i < steps; i++ {
		target := float64(i) / float64(steps-1)

		actual, ok, err := g.MoveTo(target, 0)
		if err != nil {
			g.logger.Error("gripper: test step failed", "step", i+1, "error", err)
			ok = false
		}

		results = append(results, StepResult{Target: target, Actual: actual, OK: ok})

		if i < steps-1 {
			time.Sleep(testStepPause)
		}
	}

	return results
}
