package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestPayload_TokensEncodeAsBareStrings(t *testing.T) {
	for _, token := range []string{TokenGotUserMedia, TokenBye} {
		b, err := json.Marshal(Token(token))
		if err != nil {
			t.Fatalf("Marshal(%q): %v", token, err)
		}
		want, _ := json.Marshal(token)
		if string(b) != string(want) {
			t.Fatalf("Marshal(%q): got %s, want %s", token, b, want)
		}

		var p Payload
		if err := json.Unmarshal(b, &p); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if !p.IsToken() || p.Type != token {
			t.Fatalf("Unmarshal(%s): got %+v", b, p)
		}
	}
}

func TestPayload_CandidateWireShape(t *testing.T) {
	label := uint16(0)
	mid := "0"
	p := CandidatePayload(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &label,
	})

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal raw: %v", err)
	}
	if raw["type"] != "candidate" {
		t.Fatalf("type: got %v", raw["type"])
	}
	if raw["label"] != float64(0) {
		t.Fatalf("label: got %v, want 0", raw["label"])
	}
	if raw["id"] != "0" {
		t.Fatalf("id: got %v", raw["id"])
	}

	var back Payload
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	init, err := back.ICECandidate()
	if err != nil {
		t.Fatalf("ICECandidate: %v", err)
	}
	if init.SDPMLineIndex == nil || *init.SDPMLineIndex != 0 {
		t.Fatalf("SDPMLineIndex: got %v", init.SDPMLineIndex)
	}
	if init.SDPMid == nil || *init.SDPMid != "0" {
		t.Fatalf("SDPMid: got %v", init.SDPMid)
	}
}

func TestPayload_DescriptionConversion(t *testing.T) {
	p := DescriptionPayload(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"})
	if p.Type != PayloadAnswer {
		t.Fatalf("Type: got %q", p.Type)
	}
	desc, err := p.Description()
	if err != nil {
		t.Fatalf("Description: %v", err)
	}
	if desc.Type != webrtc.SDPTypeAnswer || desc.SDP != "v=0\r\n" {
		t.Fatalf("Description: got %+v", desc)
	}

	if _, err := Token(TokenBye).Description(); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("token Description: got %v, want ErrInvalidPayload", err)
	}
}

func TestPayload_RejectsMalformed(t *testing.T) {
	cases := []string{
		`"hello"`,
		`{"type":"offer"}`,
		`{"type":"candidate","label":0}`,
		`{"type":"renegotiate","sdp":"x"}`,
		`42`,
	}
	for _, raw := range cases {
		var p Payload
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			t.Fatalf("Unmarshal(%s): expected error, got %+v", raw, p)
		}
	}

	if _, err := json.Marshal(Payload{Type: "nope"}); err == nil {
		t.Fatalf("Marshal unknown type: expected error")
	}
}
