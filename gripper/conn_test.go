package gripper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_NilConfig(t *testing.T) {
	_, err := NewConnection(context.Background(), nil)
	require.ErrorIs(t, err, ErrConnConfigNil)
}

func TestConnection_OpenClose(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link)

	assert.Equal(t, DisconnectedState, conn.State())

	require.NoError(t, conn.Open())
	assert.Equal(t, ConnectedState, conn.State())
	assert.True(t, conn.Healthy())

	require.NoError(t, conn.Close())
	assert.Equal(t, DisconnectedState, conn.State())
	assert.False(t, conn.Healthy())
}

func TestConnection_OpenTwice(t *testing.T) {
	conn := newTestConn(t, &scriptLink{})

	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	require.ErrorIs(t, conn.Open(), ErrAlreadyConnected)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	conn := newTestConn(t, &scriptLink{})

	// Closing a never-opened connection is a no-op.
	require.NoError(t, conn.Close())

	require.NoError(t, conn.Open())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, DisconnectedState, conn.State())
}

func TestSendAndAwait_NotConnected(t *testing.T) {
	conn := newTestConn(t, &scriptLink{})

	_, err := conn.SendAndAwait("servo_status 1", nil, time.Second)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendAndAwait_MatchReturnsEarly(t *testing.T) {
	link := &scriptLink{}
	link.onWrite = func(string) {
		link.pushLine("[info] moving")
		link.pushLine("GRIPPER_RESULT:0.500")
	}

	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	start := time.Now()
	lines, err := conn.SendAndAwait("gripper_control 1 0.500 100", matchMarker(markerMoveResult), 5*time.Second)
	require.NoError(t, err)

	// The match must end the wait long before the timeout.
	assert.Less(t, time.Since(start), time.Second)

	require.NotEmpty(t, lines)
	assert.Equal(t, "GRIPPER_RESULT:0.500", lines[len(lines)-1])
	assert.Contains(t, lines, "[info] moving")
}

func TestSendAndAwait_TimeoutReturnsCollectedLines(t *testing.T) {
	link := &scriptLink{}
	link.onWrite = func(string) {
		link.pushLine("[debug] chatter one")
		link.pushLine("[debug] chatter two")
	}

	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	start := time.Now()
	lines, err := conn.SendAndAwait("servo_status 1", matchMarker(markerStatus), 150*time.Millisecond)
	elapsed := time.Since(start)

	// A missing reply is not an error; the caller just sees no match.
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	assert.Equal(t, []string{"[debug] chatter one", "[debug] chatter two"}, lines)
	assert.EqualValues(t, 1, conn.GetMetrics().WaitTimeoutCount())
}

func TestSendAndAwait_ClearsStaleLines(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	// A stale reply from an earlier (timed out) exchange sits in the inbox.
	link.pushLine("GRIPPER_RESULT:0.999")
	require.Eventually(t, func() bool {
		return conn.GetMetrics().LineRecvCount() >= 1
	}, time.Second, 5*time.Millisecond)

	link.onWrite = func(string) {
		link.pushLine("GRIPPER_RESULT:0.100")
	}

	lines, err := conn.SendAndAwait("gripper_control 1 0.100 100", matchMarker(markerMoveResult), time.Second)
	require.NoError(t, err)

	// The stale line must never satisfy or pollute the new wait.
	assert.Equal(t, []string{"GRIPPER_RESULT:0.100"}, lines)
}

func TestSendAndAwait_WriteFailure(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	link.failWrites(errors.New("input/output error"))

	_, err := conn.SendAndAwait("servo_status 1", nil, time.Second)
	require.ErrorIs(t, err, ErrSendFailed)

	// A failed write degrades the session but does not tear it down.
	assert.Equal(t, ConnectedState, conn.State())
	assert.EqualValues(t, 1, conn.GetMetrics().SendErrCount())
}

func TestSendAndAwait_CloseDuringWait(t *testing.T) {
	conn := newTestConn(t, &scriptLink{})
	require.NoError(t, conn.Open())

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.SendAndAwait("servo_status 1", matchMarker(markerStatus), 10*time.Second)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrConnClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndAwait did not return after Close")
	}
}

func TestSendAndAwait_SingleFlight(t *testing.T) {
	link := &scriptLink{}
	link.onWrite = func(line string) {
		link.pushLine("PONG " + line)
	}

	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	const callers = 4

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			cmd := fmt.Sprintf("ping %d", i)
			lines, err := conn.SendAndAwait(cmd, func(line string) bool {
				return strings.HasPrefix(line, "PONG ")
			}, 2*time.Second)

			// Each exchange must see exactly its own reply: the inbox-clear
			// plus serialization keeps concurrent callers from cross-talking.
			assert.NoError(t, err)
			if assert.NotEmpty(t, lines) {
				assert.Equal(t, "PONG "+cmd, lines[len(lines)-1])
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, callers, conn.GetMetrics().CmdSendCount())
}

func TestHealthy_ReaderDeath(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	require.True(t, conn.Healthy())

	link.failReads(errors.New("device unplugged"))

	require.Eventually(t, func() bool {
		return !conn.Healthy()
	}, time.Second, 5*time.Millisecond)

	// The state flag still reads Connected; only Healthy sees the dead reader.
	assert.Equal(t, ConnectedState, conn.State())
	assert.EqualValues(t, 1, conn.GetMetrics().ReaderErrCount())

	// With nobody draining the link, every wait now times out empty.
	lines, err := conn.SendAndAwait("servo_status 1", matchMarker(markerStatus), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestDrainLines(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link)
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	link.pushLine("first")
	link.pushLine("second")
	link.pushLine("third")

	require.Eventually(t, func() bool {
		return conn.GetMetrics().LineRecvCount() >= 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"first", "second", "third"}, conn.DrainLines())
	assert.Empty(t, conn.DrainLines())
}

func TestInboxOverflow_DropsOldest(t *testing.T) {
	link := &scriptLink{}
	conn := newTestConn(t, link, WithInboxSize(4))
	require.NoError(t, conn.Open())
	defer conn.Close() //nolint:errcheck

	for i := 1; i <= 8; i++ {
		link.pushLine(fmt.Sprintf("line %d", i))
	}

	require.Eventually(t, func() bool {
		return conn.GetMetrics().LineRecvCount() >= 8
	}, time.Second, 5*time.Millisecond)

	// Backpressure favors fresh lines: the oldest buffered ones are dropped.
	assert.Equal(t, []string{"line 5", "line 6", "line 7", "line 8"}, conn.DrainLines())
	assert.EqualValues(t, 4, conn.GetMetrics().LineDropCount())
}
