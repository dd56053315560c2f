package gripper

import (
	"errors"
	"fmt"
	"time"

	"github.com/mechlab/griplink/logger"
)

// Default configuration values.
//
// The angle bounds and default move time match the gripper firmware's
// factory calibration.
const (
	DefaultBaudRate = 115200
	DefaultServoID  = 1

	DefaultAngleMin = 101.00 // fully open, degrees
	DefaultAngleMax = 147.00 // fully closed, degrees

	DefaultMoveTime = 2 * time.Second

	// DefaultPollInterval is the link read timeout used by the line reader.
	// It bounds both CPU usage while idle and the added response latency.
	DefaultPollInterval = 5 * time.Millisecond

	// MaxPollInterval caps the poll interval so observed command latency
	// stays close to actual device latency.
	MaxPollInterval = 10 * time.Millisecond

	// DefaultSettleDelay is how long Open waits after the serial port is
	// opened, giving the microcontroller time to finish booting (opening
	// the port resets most dev boards).
	DefaultSettleDelay = 2 * time.Second

	DefaultProbeTimeout    = 3 * time.Second
	DefaultStatusTimeout   = 5 * time.Second
	DefaultPositionTimeout = 5 * time.Second

	// DefaultMoveSlack is the fixed slack added on top of 2x the commanded
	// move time when deriving a move's reply timeout.
	DefaultMoveSlack = 5 * time.Second

	DefaultReaderJoinTimeout = 1 * time.Second
	DefaultSendTimeout       = 1 * time.Second

	DefaultInboxSize = 256
)

// ConnectionConfig holds all configuration for a gripper connection.
//
// It replaces any notion of process-wide defaults: every Connection is
// constructed from an explicit config.
type ConnectionConfig struct {
	portPath string
	baudRate int

	servoID int

	// Gripper physical calibration: servo angle at fully open (angleMin)
	// and fully closed (angleMax), in degrees.
	angleMin float64
	angleMax float64

	defaultMoveTime time.Duration

	pollInterval time.Duration
	settleDelay  time.Duration

	probeTimeout    time.Duration
	statusTimeout   time.Duration
	positionTimeout time.Duration
	moveSlack       time.Duration

	readerJoinTimeout time.Duration
	sendTimeout       time.Duration

	inboxSize int

	probeOnConnect bool

	// link overrides the serial link, primarily for tests and alternative
	// transports. When nil, a serial link is created from portPath/baudRate.
	link Link

	logger logger.Logger
}

// NewConnectionConfig creates a new gripper connection configuration for the
// serial device at portPath.
//
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(portPath string, opts ...ConnOption) (*ConnectionConfig, error) {
	if portPath == "" {
		return nil, errors.New("gripper: port path is empty")
	}

	cfg := &ConnectionConfig{
		portPath:          portPath,
		baudRate:          DefaultBaudRate,
		servoID:           DefaultServoID,
		angleMin:          DefaultAngleMin,
		angleMax:          DefaultAngleMax,
		defaultMoveTime:   DefaultMoveTime,
		pollInterval:      DefaultPollInterval,
		settleDelay:       DefaultSettleDelay,
		probeTimeout:      DefaultProbeTimeout,
		statusTimeout:     DefaultStatusTimeout,
		positionTimeout:   DefaultPositionTimeout,
		moveSlack:         DefaultMoveSlack,
		readerJoinTimeout: DefaultReaderJoinTimeout,
		sendTimeout:       DefaultSendTimeout,
		inboxSize:         DefaultInboxSize,
		probeOnConnect:    true,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// PortPath returns the serial device path.
func (cfg *ConnectionConfig) PortPath() string { return cfg.portPath }

// BaudRate returns the configured baud rate.
func (cfg *ConnectionConfig) BaudRate() int { return cfg.baudRate }

// ServoID returns the target servo ID.
func (cfg *ConnectionConfig) ServoID() int { return cfg.servoID }

// AngleMin returns the servo angle at the fully open position, in degrees.
func (cfg *ConnectionConfig) AngleMin() float64 { return cfg.angleMin }

// AngleMax returns the servo angle at the fully closed position, in degrees.
func (cfg *ConnectionConfig) AngleMax() float64 { return cfg.angleMax }

// DefaultMoveTime returns the move duration used when MoveTo is called
// without an explicit one.
func (cfg *ConnectionConfig) DefaultMoveTime() time.Duration { return cfg.defaultMoveTime }

// PollInterval returns the line reader's link poll interval.
func (cfg *ConnectionConfig) PollInterval() time.Duration { return cfg.pollInterval }

// SettleDelay returns the post-open settle delay.
func (cfg *ConnectionConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// ProbeTimeout returns the reply timeout for the liveness probe.
func (cfg *ConnectionConfig) ProbeTimeout() time.Duration { return cfg.probeTimeout }

// StatusTimeout returns the reply timeout for status queries.
func (cfg *ConnectionConfig) StatusTimeout() time.Duration { return cfg.statusTimeout }

// PositionTimeout returns the reply timeout for position queries.
func (cfg *ConnectionConfig) PositionTimeout() time.Duration { return cfg.positionTimeout }

// MoveSlack returns the fixed slack added to a move's derived reply timeout.
func (cfg *ConnectionConfig) MoveSlack() time.Duration { return cfg.moveSlack }

// ProbeOnConnect returns whether Controller.Connect runs a liveness probe.
func (cfg *ConnectionConfig) ProbeOnConnect() bool { return cfg.probeOnConnect }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithBaudRate sets the serial baud rate. Must be positive.
func WithBaudRate(baud int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if baud <= 0 {
			return fmt.Errorf("gripper: baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithServoID sets the target servo ID. Must be >= 1.
func WithServoID(id int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if id < 1 {
			return fmt.Errorf("gripper: servo ID %d must be >= 1", id)
		}
		cfg.servoID = id

		return nil
	})
}

// WithAngleBounds sets the servo angles (degrees) for the fully open and
// fully closed positions. min must be strictly less than max.
func WithAngleBounds(min, max float64) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if min >= max {
			return fmt.Errorf("gripper: angle bounds [%v, %v] invalid, min must be < max", min, max)
		}
		cfg.angleMin = min
		cfg.angleMax = max

		return nil
	})
}

// WithDefaultMoveTime sets the move duration used when none is given.
func WithDefaultMoveTime(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: default move time must be positive")
		}
		cfg.defaultMoveTime = d

		return nil
	})
}

// WithPollInterval sets the line reader's poll interval.
// Must be in (0, MaxPollInterval].
func WithPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 || d > MaxPollInterval {
			return fmt.Errorf("gripper: poll interval %v out of range (0, %v]", d, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithSettleDelay sets the post-open settle delay. Zero disables it.
func WithSettleDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("gripper: settle delay must not be negative")
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithProbeTimeout sets the reply timeout for the liveness probe.
func WithProbeTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: probe timeout must be positive")
		}
		cfg.probeTimeout = d

		return nil
	})
}

// WithStatusTimeout sets the reply timeout for status queries.
func WithStatusTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: status timeout must be positive")
		}
		cfg.statusTimeout = d

		return nil
	})
}

// WithPositionTimeout sets the reply timeout for position queries.
func WithPositionTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: position timeout must be positive")
		}
		cfg.positionTimeout = d

		return nil
	})
}

// WithMoveSlack sets the fixed slack added to a move's derived reply timeout.
func WithMoveSlack(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < 0 {
			return errors.New("gripper: move slack must not be negative")
		}
		cfg.moveSlack = d

		return nil
	})
}

// WithReaderJoinTimeout sets how long Close waits for the line reader to stop
// before proceeding without it.
func WithReaderJoinTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: reader join timeout must be positive")
		}
		cfg.readerJoinTimeout = d

		return nil
	})
}

// WithSendTimeout sets the logical timeout for writing a command line.
func WithSendTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("gripper: send timeout must be positive")
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithInboxSize sets the capacity of the received-line inbox. Must be >= 1.
// When the inbox is full the reader drops the oldest buffered line.
func WithInboxSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < 1 {
			return errors.New("gripper: inbox size must be >= 1")
		}
		cfg.inboxSize = size

		return nil
	})
}

// WithProbeOnConnect enables or disables the liveness probe run by
// Controller.Connect. Enabled by default.
func WithProbeOnConnect(enabled bool) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.probeOnConnect = enabled

		return nil
	})
}

// WithLink sets a custom Link implementation, bypassing the serial port.
// Intended for tests and alternative byte-stream transports.
func WithLink(l Link) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("gripper: link must not be nil")
		}
		cfg.link = l

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("gripper: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
