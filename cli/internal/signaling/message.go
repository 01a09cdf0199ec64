package signaling

import "encoding/json"

// Message represents all WebSocket messages between the client and the relay.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeCreateOrJoin = "create-or-join"
	MessageTypeLeave        = "leave"
	MessageTypeMessage      = "message"

	MessageTypeCreated     = "created"
	MessageTypeJoinRequest = "join-request"
	MessageTypeJoined      = "joined"
	MessageTypeFull        = "full"
	MessageTypePeerLeft    = "peer-left"
	MessageTypeError       = "error"
)

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
}

// MembershipKind is the kind of a room membership event.
type MembershipKind string

const (
	MembershipCreated     MembershipKind = MessageTypeCreated
	MembershipJoinRequest MembershipKind = MessageTypeJoinRequest
	MembershipJoined      MembershipKind = MessageTypeJoined
	MembershipFull        MembershipKind = MessageTypeFull
	MembershipPeerLeft    MembershipKind = MessageTypePeerLeft
)

// MembershipEvent is a room membership notification relayed to this participant.
type MembershipEvent struct {
	Kind MembershipKind
	Room string
}

// Event is one relay delivery in arrival order: either a membership change
// or a payload from the peer.
type Event struct {
	Membership *MembershipEvent
	Message    *Payload
}

func isMembership(t string) bool {
	switch MembershipKind(t) {
	case MembershipCreated, MembershipJoinRequest, MembershipJoined, MembershipFull, MembershipPeerLeft:
		return true
	}
	return false
}
