package gripper

import "sync/atomic"

// ConnState represents the lifecycle state of a gripper session.
//
// Transitions are driven only by Connection.Open and Connection.Close.
// A reader failure does not change the state; see Connection.Healthy.
type ConnState uint32

const (
	// DisconnectedState indicates that no link to the device is open.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that the link is being established.
	ConnectingState
	// ConnectedState indicates that the link is open and the line reader is running.
	ConnectedState
)

// IsDisconnected returns true if the state is DisconnectedState.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns true if the state is ConnectingState.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns true if the state is ConnectedState.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// atomicConnState is a thread-safe holder for ConnState.
type atomicConnState struct {
	v atomic.Uint32
}

func (s *atomicConnState) Set(cs ConnState) { s.v.Store(uint32(cs)) }

func (s *atomicConnState) State() ConnState { return ConnState(s.v.Load()) }

func (s *atomicConnState) CompareAndSwap(old, next ConnState) bool {
	return s.v.CompareAndSwap(uint32(old), uint32(next))
}
