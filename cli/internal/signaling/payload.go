package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Payload types carried inside a "message" envelope.
const (
	PayloadOffer     = "offer"
	PayloadAnswer    = "answer"
	PayloadCandidate = "candidate"

	// Control tokens travel as bare JSON strings.
	TokenGotUserMedia = "got user media"
	TokenBye          = "bye"
)

var ErrInvalidPayload = errors.New("invalid signaling payload")

// Payload is the opaque client-to-client signaling data relayed by the server:
// a session description, a network candidate, or a control token.
type Payload struct {
	Type      string
	SDP       string
	Label     *uint16
	ID        *string
	Candidate string
}

type payloadJSON struct {
	Type      string  `json:"type"`
	SDP       string  `json:"sdp,omitempty"`
	Label     *uint16 `json:"label,omitempty"`
	ID        *string `json:"id,omitempty"`
	Candidate string  `json:"candidate,omitempty"`
}

// IsToken reports whether the payload is a bare control token.
func (p Payload) IsToken() bool {
	return p.Type == TokenGotUserMedia || p.Type == TokenBye
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsToken() {
		return json.Marshal(p.Type)
	}
	switch p.Type {
	case PayloadOffer, PayloadAnswer:
		return json.Marshal(payloadJSON{Type: p.Type, SDP: p.SDP})
	case PayloadCandidate:
		return json.Marshal(payloadJSON{Type: p.Type, Label: p.Label, ID: p.ID, Candidate: p.Candidate})
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, p.Type)
	}
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var token string
		if err := json.Unmarshal(b, &token); err != nil {
			return err
		}
		if token != TokenGotUserMedia && token != TokenBye {
			return fmt.Errorf("%w: unknown token %q", ErrInvalidPayload, token)
		}
		*p = Payload{Type: token}
		return nil
	}

	var raw payloadJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case PayloadOffer, PayloadAnswer:
		if raw.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", ErrInvalidPayload, raw.Type)
		}
	case PayloadCandidate:
		if raw.Candidate == "" {
			return fmt.Errorf("%w: candidate without candidate line", ErrInvalidPayload)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, raw.Type)
	}
	*p = Payload{
		Type:      raw.Type,
		SDP:       raw.SDP,
		Label:     raw.Label,
		ID:        raw.ID,
		Candidate: raw.Candidate,
	}
	return nil
}

// DescriptionPayload wraps a local session description for transmission.
func DescriptionPayload(desc webrtc.SessionDescription) Payload {
	return Payload{Type: desc.Type.String(), SDP: desc.SDP}
}

// Description converts an offer/answer payload into a pion session description.
func (p Payload) Description() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch p.Type {
	case PayloadOffer:
		t = webrtc.SDPTypeOffer
	case PayloadAnswer:
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %q is not a description", ErrInvalidPayload, p.Type)
	}
	if p.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: empty sdp", ErrInvalidPayload)
	}
	return webrtc.SessionDescription{Type: t, SDP: p.SDP}, nil
}

// CandidatePayload wraps a locally gathered candidate. The media line index
// travels as "label" and the media id as "id".
func CandidatePayload(init webrtc.ICECandidateInit) Payload {
	return Payload{
		Type:      PayloadCandidate,
		Label:     init.SDPMLineIndex,
		ID:        init.SDPMid,
		Candidate: init.Candidate,
	}
}

// ICECandidate converts a candidate payload into a pion candidate init.
func (p Payload) ICECandidate() (webrtc.ICECandidateInit, error) {
	if p.Type != PayloadCandidate || p.Candidate == "" {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %q is not a candidate", ErrInvalidPayload, p.Type)
	}
	return webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMid:        p.ID,
		SDPMLineIndex: p.Label,
	}, nil
}

// Token builds a control token payload.
func Token(token string) Payload {
	return Payload{Type: token}
}
