package gripper

import "github.com/puzpuzpuz/xsync/v3"

// ConnectionMetrics tracks connection-level counters.
//
// Counters are updated from both the caller goroutine and the line reader,
// so they use xsync counters rather than plain integers.
type ConnectionMetrics struct {
	lineRecvCount    *xsync.Counter
	lineDropCount    *xsync.Counter
	cmdSendCount     *xsync.Counter
	sendErrCount     *xsync.Counter
	waitTimeoutCount *xsync.Counter
	readerErrCount   *xsync.Counter
}

func newConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{
		lineRecvCount:    xsync.NewCounter(),
		lineDropCount:    xsync.NewCounter(),
		cmdSendCount:     xsync.NewCounter(),
		sendErrCount:     xsync.NewCounter(),
		waitTimeoutCount: xsync.NewCounter(),
		readerErrCount:   xsync.NewCounter(),
	}
}

// LineRecvCount returns the number of complete lines received from the device.
func (m *ConnectionMetrics) LineRecvCount() int64 { return m.lineRecvCount.Value() }

// LineDropCount returns the number of buffered lines dropped due to a full inbox.
func (m *ConnectionMetrics) LineDropCount() int64 { return m.lineDropCount.Value() }

// CmdSendCount returns the number of command lines written to the link.
func (m *ConnectionMetrics) CmdSendCount() int64 { return m.cmdSendCount.Value() }

// SendErrCount returns the number of failed command writes.
func (m *ConnectionMetrics) SendErrCount() int64 { return m.sendErrCount.Value() }

// WaitTimeoutCount returns the number of reply waits that elapsed without a match.
func (m *ConnectionMetrics) WaitTimeoutCount() int64 { return m.waitTimeoutCount.Value() }

// ReaderErrCount returns the number of line reader terminations due to I/O errors.
func (m *ConnectionMetrics) ReaderErrCount() int64 { return m.readerErrCount.Value() }

func (m *ConnectionMetrics) incLineRecvCount()    { m.lineRecvCount.Inc() }
func (m *ConnectionMetrics) incLineDropCount()    { m.lineDropCount.Inc() }
func (m *ConnectionMetrics) incCmdSendCount()     { m.cmdSendCount.Inc() }
func (m *ConnectionMetrics) incSendErrCount()     { m.sendErrCount.Inc() }
func (m *ConnectionMetrics) incWaitTimeoutCount() { m.waitTimeoutCount.Inc() }
func (m *ConnectionMetrics) incReaderErrCount()   { m.readerErrCount.Inc() }
