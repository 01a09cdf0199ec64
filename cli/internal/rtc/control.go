package rtc

import "github.com/vmihailenco/msgpack/v5"

// ControlLabel is the label of the data channel carrying ControlMessages.
const ControlLabel = "control"

// Control message types.
const (
	ControlMediaState = "media-state"
)

// ControlMessage is the msgpack envelope sent over the control data channel.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// MediaState tells the peer which of the sender's local tracks are enabled.
type MediaState struct {
	Audio bool `msgpack:"audio"`
	Video bool `msgpack:"video"`
}

// NewControlMessage encodes payload under type t.
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into v.
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
