package peer

// State is where a peer connection is in its negotiation.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswering
	StateConnected
	StateClosed
)

var stateNames = [...]string{"idle", "offering", "answering", "connected", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// transitions lists the allowed moves; closed is reachable from anywhere and
// is terminal. offering→answering resolves glare, answering→answering applies
// a repeated offer to the same connection, and connected→offering or
// connected→answering are renegotiations.
var transitions = map[State][]State{
	StateIdle:      {StateOffering, StateAnswering},
	StateOffering:  {StateAnswering, StateConnected},
	StateAnswering: {StateAnswering, StateConnected},
	StateConnected: {StateOffering, StateAnswering},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	if s == StateClosed {
		return false
	}
	if next == StateClosed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConnectionState mirrors the transport-level connection state.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

var connectionStateNames = [...]string{"new", "connecting", "connected", "disconnected", "failed", "closed"}

func (s ConnectionState) String() string {
	if int(s) < len(connectionStateNames) {
		return connectionStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the connection is gone for good.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionDisconnected || s == ConnectionFailed || s == ConnectionClosed
}
