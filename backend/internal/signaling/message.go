package signaling

import "encoding/json"

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

const (
	// client to relay
	TypeCreateOrJoin = "create-or-join"
	TypeLeave        = "leave"
	TypeMessage      = "message"

	// relay to client
	TypeCreated     = "created"
	TypeJoinRequest = "join-request"
	TypeJoined      = "joined"
	TypeFull        = "full"
	TypePeerLeft    = "peer-left"
	TypeError       = "error"
)

// MaxRoomLength bounds room names accepted by the relay.
const MaxRoomLength = 64

func errorMessage(text string) *Message {
	payload, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{text})
	return &Message{Type: TypeError, Payload: payload}
}
