package connection

import "fmt"

// StateKind is the connection lifecycle phase.
type StateKind int

const (
	StateDisconnected StateKind = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// State is a snapshot of the manager's lifecycle.
type State struct {
	Kind StateKind
	// Attempt is the 1-based attempt number while connecting.
	Attempt int
	// Reason is the final error when Kind is StateFailed.
	Reason error
}

func (s State) String() string {
	switch s.Kind {
	case StateConnecting:
		return fmt.Sprintf("connecting(attempt %d)", s.Attempt)
	case StateFailed:
		if s.Reason != nil {
			return fmt.Sprintf("failed(%v)", s.Reason)
		}
	}
	return s.Kind.String()
}
