package gripper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mechlab/griplink/internal/pool"
	"github.com/mechlab/griplink/logger"
)

// MatchFunc decides whether a received line satisfies the pending request.
type MatchFunc func(line string) bool

// Connection owns a gripper session: the Link, the background line reader,
// and the request/response correlator.
//
// Exactly two goroutines touch a connected session: the caller's (writes
// commands, consumes the inbox) and the line reader (produces the inbox).
// The underlying link is a single serial channel with no request IDs, so
// there is deliberately no parallel command dispatch.
type Connection struct {
	pctx   context.Context
	cfg    *ConnectionConfig
	logger logger.Logger

	link Link

	// inbox carries decoded lines from the reader to the correlator, in
	// wire arrival order. Created once; drained on Close and before each
	// new exchange.
	inbox chan string

	state atomicConnState

	// lifeMu serializes Open/Close and guards ctx and reader.
	lifeMu    sync.Mutex
	ctx       context.Context
	ctxCancel context.CancelFunc
	reader    *lineReader

	// reqMu enforces the single-flight discipline: the inbox-clear at the
	// start of each exchange makes concurrent exchanges corrupt each other.
	reqMu sync.Mutex

	metrics *ConnectionMetrics
}

// NewConnection creates a new gripper Connection with the given parent
// context and configuration. The link is not opened until Open is called.
func NewConnection(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	c := &Connection{
		pctx:    ctx,
		cfg:     cfg,
		logger:  cfg.logger,
		inbox:   make(chan string, cfg.inboxSize),
		metrics: newConnectionMetrics(),
	}

	if cfg.link != nil {
		c.link = cfg.link
	} else {
		c.link = newSerialLink(cfg.portPath, cfg.baudRate, cfg.pollInterval)
	}

	c.state.Set(DisconnectedState)

	return c, nil
}

// Open opens the link and starts the line reader.
//
// After the link opens, Open waits the configured settle delay so the device
// can finish booting (opening a serial port resets most dev boards) before
// callers start issuing commands.
func (c *Connection) Open() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if !c.state.CompareAndSwap(DisconnectedState, ConnectingState) {
		return ErrAlreadyConnected
	}

	if err := c.link.Open(); err != nil {
		c.state.Set(DisconnectedState)

		return err
	}

	c.ctx, c.ctxCancel = context.WithCancel(c.pctx)
	c.reader = newLineReader(c.link, c.inbox, c.logger, c.metrics)
	go c.reader.run(c.ctx)

	c.state.Set(ConnectedState)
	c.logger.Info("gripper: connected", "port", c.cfg.portPath, "baud", c.cfg.baudRate)

	if c.cfg.settleDelay > 0 {
		timer := pool.GetTimer(c.cfg.settleDelay)
		defer pool.PutTimer(timer)

		select {
		case <-timer.C:
		case <-c.ctx.Done():
		}
	}

	return nil
}

// Close stops the line reader, closes the link, and discards buffered lines.
//
// It is idempotent and never fails: closing a connection that was never
// opened, or closing twice, is a no-op. If the reader does not stop within
// the join timeout, Close proceeds without it.
func (c *Connection) Close() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.state.State().IsDisconnected() {
		return nil
	}

	if c.ctxCancel != nil {
		c.ctxCancel()
	}

	if c.reader != nil {
		timer := pool.GetTimer(c.cfg.readerJoinTimeout)

		select {
		case <-c.reader.done:
		case <-timer.C:
			c.logger.Warn("gripper: line reader did not stop before join timeout",
				"timeout", c.cfg.readerJoinTimeout)
		}

		pool.PutTimer(timer)
		c.reader = nil
	}

	if err := c.link.Close(); err != nil {
		c.logger.Error("gripper: link close failed", "error", err)
	}

	c.DrainLines()

	c.state.Set(DisconnectedState)
	c.logger.Info("gripper: disconnected", "port", c.cfg.portPath)

	return nil
}

// State returns the current session state.
func (c *Connection) State() ConnState {
	return c.state.State()
}

// Healthy reports whether the session is connected and its line reader is
// still running.
//
// The state flag alone cannot be trusted after a link I/O error: the reader
// exits silently and every subsequent wait would time out. Healthy exposes
// that divergence; the state itself still changes only via Open and Close.
func (c *Connection) Healthy() bool {
	if !c.state.State().IsConnected() {
		return false
	}

	c.lifeMu.Lock()
	reader := c.reader
	c.lifeMu.Unlock()

	return reader != nil && reader.alive.Load()
}

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return c.metrics
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// DrainLines removes and returns all currently buffered lines, in arrival
// order. It never blocks.
func (c *Connection) DrainLines() []string {
	var lines []string

	for {
		select {
		case line := <-c.inbox:
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

// SendAndAwait writes one command line and consumes the inbox until a line
// satisfying match arrives or timeout elapses.
//
// Any lines still buffered from earlier exchanges are discarded before the
// command is written, so a stale reply can never satisfy this wait.
//
// It returns every line observed during the wait, in arrival order, whether
// or not any of them matched: the device interleaves diagnostic lines with
// the authoritative reply, and callers scan the sequence themselves. An
// elapsed timeout is not an error; the caller sees it as an absent match.
//
// Errors: ErrNotConnected if the session is not open, ErrSendFailed if the
// write fails (no wait is performed), ErrConnClosed if the connection is
// closed mid-wait. Only one exchange may be in flight at a time; concurrent
// callers are serialized.
func (c *Connection) SendAndAwait(cmd string, match MatchFunc, timeout time.Duration) ([]string, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.lifeMu.Lock()
	ctx := c.ctx
	st := c.state.State()
	c.lifeMu.Unlock()

	if !st.IsConnected() {
		return nil, ErrNotConnected
	}

	// Step 1: discard residual lines from prior exchanges.
	if stale := c.DrainLines(); len(stale) > 0 {
		c.logger.Debug("gripper: discarded stale lines", "count", len(stale))
	}

	// Step 2: write the command, terminator-appended if absent.
	if !strings.HasSuffix(cmd, "\n") {
		cmd += "\n"
	}

	if err := c.writeLine(ctx, cmd); err != nil {
		c.metrics.incSendErrCount()
		c.logger.Error("gripper: command write failed",
			"cmd", strings.TrimSuffix(cmd, "\n"), "error", err)

		return nil, ErrSendFailed
	}

	c.metrics.incCmdSendCount()
	c.logger.Debug("gripper: command sent", "cmd", strings.TrimSuffix(cmd, "\n"))

	// Step 3: drain the inbox until a match or the deadline.
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	var lines []string

	for {
		select {
		case <-ctx.Done():
			return lines, ErrConnClosed

		case <-timer.C:
			c.metrics.incWaitTimeoutCount()
			c.logger.Debug("gripper: reply wait elapsed",
				"timeout", timeout, "lines", len(lines))

			return lines, nil

		case line := <-c.inbox:
			lines = append(lines, line)
			if match != nil && match(line) {
				return lines, nil
			}
		}
	}
}

// writeLine writes a command line with a bounded logical timeout. Serial
// writes normally complete immediately, but a wedged USB adapter can block
// indefinitely; the timer turns that into a send failure.
func (c *Connection) writeLine(ctx context.Context, cmd string) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- c.link.Write([]byte(cmd))
	}()

	timer := pool.GetTimer(c.cfg.sendTimeout)
	defer pool.PutTimer(timer)

	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return errors.New("gripper: write timeout")
	case <-ctx.Done():
		return ErrConnClosed
	}
}
