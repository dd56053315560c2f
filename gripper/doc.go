// Package gripper implements a host-side controller for a gripper servo
// attached to an embedded microcontroller, speaking a line-oriented text
// protocol over a serial byte stream.
//
// # Architecture
//
// The package is built around four cooperating parts:
//
//   - Link: the byte-stream connection to the device. The default
//     implementation wraps a serial port; tests and alternative transports
//     can supply their own via WithLink.
//   - line reader: a background goroutine that continuously polls the Link,
//     assembles received bytes into text lines, and publishes them to the
//     connection's inbox channel. It is the sole producer of the inbox.
//   - correlator: Connection.SendAndAwait writes one command line and then
//     consumes the inbox until a caller-supplied match predicate accepts a
//     line or the deadline elapses. It is the sole consumer of the inbox,
//     and only one exchange may be in flight at a time.
//   - codec: pure functions that format outgoing commands and parse the
//     known reply shapes (status, position, move result, error).
//
// Controller composes these into the domain operations: GetStatus,
// ReadPosition, MoveTo, Calibrate.
//
// # Wire protocol
//
// Commands are single newline-terminated text lines of the form
// "<name> <servo_id> [<arg>...]", for example:
//
//	gripper_control 1 0.750 2000
//
// Replies are free-form text lines classified by substring markers rather
// than a strict grammar. The firmware interleaves diagnostic lines with the
// authoritative reply, so SendAndAwait returns every line observed during
// the wait and callers scan the sequence with the tolerant parse functions.
//
// # Failure model
//
// A reply timeout is not an error: domain operations report it as a missing
// value (ok == false) and the caller may retry. Write failures surface as
// ErrSendFailed. An I/O error in the line reader stops the reader without
// changing the session state; the degraded condition is observable through
// Healthy().
package gripper
