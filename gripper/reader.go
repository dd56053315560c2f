package gripper

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"

	"github.com/mechlab/griplink/logger"
)

// readChunkSize is the size of the line reader's per-iteration read buffer.
const readChunkSize = 512

// lineReader is the background task that drains the Link into the inbox.
//
// It is the sole producer of the inbox channel. One lineReader exists per
// connected session; it runs from Open until Close or the first read error.
type lineReader struct {
	link    Link
	inbox   chan string
	logger  logger.Logger
	metrics *ConnectionMetrics

	// partial holds the trailing bytes of an incomplete line between reads.
	partial []byte

	// alive is true while the reader loop is running. It drops to false on
	// cooperative stop and on read-error exit; the latter is the degraded
	// "connected but dead" condition surfaced by Connection.Healthy.
	alive atomic.Bool

	// done is closed when the reader loop returns; Close joins on it.
	done chan struct{}
}

func newLineReader(link Link, inbox chan string, l logger.Logger, metrics *ConnectionMetrics) *lineReader {
	r := &lineReader{
		link:    link,
		inbox:   inbox,
		logger:  l,
		metrics: metrics,
		done:    make(chan struct{}),
	}
	r.alive.Store(true)

	return r
}

// run is the reader loop. The Link's read timeout paces the loop: Read
// blocks for at most the poll interval and returns (0, nil) when idle, so
// an idle session costs one short read per interval.
func (r *lineReader) run(ctx context.Context) {
	defer close(r.done)
	defer r.alive.Store(false)

	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := r.link.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			// The session is now silently dead from the device's point of
			// view; the state flag stays Connected and the condition is
			// observable only through Healthy().
			r.logger.Error("gripper: link read failed, line reader stopping", "error", err)
			r.metrics.incReaderErrCount()

			return
		}

		if n == 0 {
			continue // poll timeout, nothing received
		}

		r.feed(ctx, buf[:n])
	}
}

// feed appends received bytes to the partial-line accumulator and publishes
// every completed line.
func (r *lineReader) feed(ctx context.Context, b []byte) {
	r.partial = append(r.partial, b...)

	for {
		idx := bytes.IndexByte(r.partial, '\n')
		if idx < 0 {
			return
		}

		raw := r.partial[:idx]
		r.partial = r.partial[idx+1:]

		// Decode per completed line so multi-byte runes split across reads
		// are never mangled; invalid sequences are replaced, not fatal.
		line := strings.TrimRight(strings.ToValidUTF8(string(raw), "�"), "\r")
		if line == "" {
			continue
		}

		r.publish(ctx, line)
	}
}

// publish delivers a line to the inbox. When the inbox is full the oldest
// buffered line is dropped so the reader never stalls behind a slow caller.
func (r *lineReader) publish(ctx context.Context, line string) {
	r.metrics.incLineRecvCount()

	select {
	case r.inbox <- line:
		return
	default:
	}

	select {
	case <-r.inbox:
		r.metrics.incLineDropCount()
	default:
	}

	select {
	case r.inbox <- line:
	case <-ctx.Done():
	}
}
