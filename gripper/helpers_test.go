package gripper

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptLink is an in-memory Link standing in for the device.
//
// Tests queue reply bytes with pushLine/pushBytes, or set onWrite to answer
// each written command line. Read emulates a serial port with a short poll
// timeout: it returns whatever is buffered, or (0, nil) after a brief sleep.
type scriptLink struct {
	mu       sync.Mutex
	rx       bytes.Buffer
	writes   []string
	writeErr error
	readErr  error
	onWrite  func(line string)
}

var _ Link = (*scriptLink)(nil)

func (l *scriptLink) Open() error { return nil }

func (l *scriptLink) Close() error { return nil }

func (l *scriptLink) SetReadTimeout(time.Duration) error { return nil }

func (l *scriptLink) Write(p []byte) error {
	l.mu.Lock()
	if l.writeErr != nil {
		err := l.writeErr
		l.mu.Unlock()

		return err
	}

	line := strings.TrimSuffix(string(p), "\n")
	l.writes = append(l.writes, line)
	cb := l.onWrite
	l.mu.Unlock()

	if cb != nil {
		cb(line)
	}

	return nil
}

func (l *scriptLink) Read(p []byte) (int, error) {
	l.mu.Lock()
	if l.readErr != nil {
		err := l.readErr
		l.mu.Unlock()

		return 0, err
	}

	n, _ := l.rx.Read(p)
	l.mu.Unlock()

	if n > 0 {
		return n, nil
	}

	time.Sleep(time.Millisecond) // emulate the link poll timeout

	return 0, nil
}

func (l *scriptLink) pushLine(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rx.WriteString(line + "\r\n")
}

func (l *scriptLink) pushBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rx.Write(b)
}

func (l *scriptLink) failWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeErr = err
}

func (l *scriptLink) failReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readErr = err
}

func (l *scriptLink) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.writes)
}

func (l *scriptLink) writtenLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := make([]string, len(l.writes))
	copy(lines, l.writes)

	return lines
}

// newTestConfig builds a config wired to the given link with test-friendly
// timing (no settle delay, no probe, short send timeout).
func newTestConfig(t *testing.T, link Link, opts ...ConnOption) *ConnectionConfig {
	t.Helper()

	base := []ConnOption{
		WithLink(link),
		WithSettleDelay(0),
		WithProbeOnConnect(false),
		WithSendTimeout(200 * time.Millisecond),
		WithReaderJoinTimeout(500 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig("/dev/ttyTEST0", append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newTestConn builds an unopened Connection around the given link.
func newTestConn(t *testing.T, link Link, opts ...ConnOption) *Connection {
	t.Helper()

	conn, err := NewConnection(context.Background(), newTestConfig(t, link, opts...))
	require.NoError(t, err)

	return conn
}

// newTestController builds a connected Controller around the given link.
// The connection is closed automatically at test cleanup.
func newTestController(t *testing.T, link Link, opts ...ConnOption) *Controller {
	t.Helper()

	ctrl, err := NewController(context.Background(), newTestConfig(t, link, opts...))
	require.NoError(t, err)

	require.NoError(t, ctrl.Connect())
	t.Cleanup(func() { _ = ctrl.Disconnect() })

	return ctrl
}
