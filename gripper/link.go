package gripper

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Link is the byte-stream connection to the device.
//
// The read path is used only by the line reader goroutine and the write path
// only by the correlator, so implementations need not serialize reads against
// writes; Open and Close are serialized by the Connection.
type Link interface {
	// Open establishes the connection.
	Open() error
	// Close tears the connection down. It is idempotent.
	Close() error
	// Write writes p to the link.
	Write(p []byte) error
	// Read reads available bytes into p. It blocks for at most the
	// configured read timeout and returns (0, nil) when no bytes arrived.
	Read(p []byte) (int, error)
	// SetReadTimeout sets the poll timeout applied to Read.
	SetReadTimeout(d time.Duration) error
}

// serialLink implements Link over a serial port.
type serialLink struct {
	path string
	mode *serial.Mode

	mu          sync.Mutex
	readTimeout time.Duration
	port        serial.Port
}

var _ Link = (*serialLink)(nil)

func newSerialLink(path string, baud int, readTimeout time.Duration) *serialLink {
	return &serialLink{
		path: path,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: readTimeout,
	}
}

func (l *serialLink) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		return nil
	}

	port, err := serial.Open(l.path, l.mode)
	if err != nil {
		return fmt.Errorf("gripper: open serial port %s: %w", l.path, err)
	}

	if err := port.SetReadTimeout(l.readTimeout); err != nil {
		_ = port.Close()

		return fmt.Errorf("gripper: set read timeout on %s: %w", l.path, err)
	}

	// Discard whatever the device emitted before we were listening.
	_ = port.ResetInputBuffer()

	l.port = port

	return nil
}

func (l *serialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}

	port := l.port
	l.port = nil

	if err := port.Close(); err != nil {
		return fmt.Errorf("gripper: close serial port %s: %w", l.path, err)
	}

	return nil
}

func (l *serialLink) Write(p []byte) error {
	port := l.getPort()
	if port == nil {
		return ErrNotConnected
	}

	if _, err := port.Write(p); err != nil {
		return fmt.Errorf("gripper: serial write: %w", err)
	}

	return nil
}

func (l *serialLink) Read(p []byte) (int, error) {
	port := l.getPort()
	if port == nil {
		return 0, ErrNotConnected
	}

	return port.Read(p)
}

func (l *serialLink) SetReadTimeout(d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readTimeout = d
	if l.port == nil {
		return nil
	}

	return l.port.SetReadTimeout(d)
}

func (l *serialLink) getPort() serial.Port {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.port
}
