package room

import "sync"

// State is the session lifecycle state. Sessions start in
// StateConnecting and end in StateDisconnected; in between they bounce
// between StateConnected and StateReconnecting as the connection
// degrades and recovers.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateDisconnected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// canTransition reports whether moving from s to next is a legal
// lifecycle step. StateDisconnected is terminal.
func (s State) canTransition(next State) bool {
	switch s {
	case StateConnecting:
		return next == StateConnected || next == StateDisconnected
	case StateConnected:
		return next == StateReconnecting || next == StateDisconnected
	case StateReconnecting:
		return next == StateConnected || next == StateDisconnected
	default:
		return false
	}
}

// stateMachine serializes lifecycle transitions. SDK callbacks fire
// from multiple goroutines and can race the run loop's own shutdown;
// the transition table makes late callbacks harmless.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition attempts to move to next. It returns the previous state
// and whether the move was applied.
func (m *stateMachine) transition(next State) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	if !prev.canTransition(next) {
		return prev, false
	}
	m.state = next
	return prev, true
}
