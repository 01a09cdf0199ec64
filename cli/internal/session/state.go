package session

// State is the coordinator's negotiation state.
type State int

const (
	StateIdle State = iota
	StateAwaitingPreconditions
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPreconditions:
		return "awaiting-preconditions"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the lifecycle of the current connection.
type Status int

const (
	StatusIdle Status = iota
	StatusStarted
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarted:
		return "started"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role is the participant's side of the negotiation. It is assigned once by
// the relay and survives teardown.
type Role int

const (
	RoleUnassigned Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unassigned"
	}
}
