package gripper

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("gripper: connection config is nil")

	// ErrAlreadyConnected indicates that Open was called on a connection
	// that is already connecting or connected.
	ErrAlreadyConnected = errors.New("gripper: connection already open")

	// ErrNotConnected indicates that an operation requiring an open
	// connection was called while disconnected.
	ErrNotConnected = errors.New("gripper: connection is not open")

	// ErrConnClosed indicates that the connection was closed while an
	// exchange was in flight.
	ErrConnClosed = errors.New("gripper: connection closed")

	// ErrSendFailed indicates that writing a command line to the link failed.
	// The session remains nominally open but is likely unusable.
	ErrSendFailed = errors.New("gripper: command send failed")

	// ErrValueOutOfRange indicates a normalized gripper position outside [0, 1].
	ErrValueOutOfRange = errors.New("gripper: normalized value out of range [0, 1]")
)
