package signaling

import (
	"encoding/json"
	"testing"
	"time"
)

func recvWithin[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", what)
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out", what)
	}
	var zero T
	return zero
}

func TestHandler_RoutesByType(t *testing.T) {
	incoming := make(chan *Message, 8)
	h := NewHandler(incoming)
	go h.Start()
	defer h.Close()

	offer, _ := json.Marshal(Payload{Type: PayloadOffer, SDP: "v=0"})
	errPayload, _ := json.Marshal(ErrorPayload{Error: "room name required"})

	incoming <- &Message{Type: MessageTypeCreated, Room: "r1"}
	incoming <- &Message{Type: MessageTypeMessage, Room: "r1", Payload: offer}
	incoming <- &Message{Type: MessageTypeError, Payload: errPayload}
	incoming <- &Message{Type: MessageTypePeerLeft, Room: "r1"}

	ev := recvWithin(t, h.Events, "created")
	if ev.Membership == nil || ev.Membership.Kind != MembershipCreated || ev.Membership.Room != "r1" {
		t.Fatalf("membership: got %+v", ev)
	}
	ev = recvWithin(t, h.Events, "offer")
	if ev.Message == nil || ev.Message.Type != PayloadOffer || ev.Message.SDP != "v=0" {
		t.Fatalf("message: got %+v", ev)
	}
	if got := recvWithin(t, h.Errors, "error"); got != "room name required" {
		t.Fatalf("error: got %q", got)
	}
	ev = recvWithin(t, h.Events, "peer-left")
	if ev.Membership == nil || ev.Membership.Kind != MembershipPeerLeft {
		t.Fatalf("membership: got %+v", ev)
	}
}

// A peer that hangs up and rejoins produces bye, peer-left and join-request.
// They must come out in that order whatever the mix of kinds.
func TestHandler_PreservesRelayOrder(t *testing.T) {
	incoming := make(chan *Message, 8)
	h := NewHandler(incoming)
	go h.Start()
	defer h.Close()

	bye, _ := json.Marshal(Token(TokenBye))
	offer, _ := json.Marshal(Payload{Type: PayloadOffer, SDP: "v=0"})

	incoming <- &Message{Type: MessageTypeMessage, Room: "r1", Payload: bye}
	incoming <- &Message{Type: MessageTypePeerLeft, Room: "r1"}
	incoming <- &Message{Type: MessageTypeJoinRequest, Room: "r1"}
	incoming <- &Message{Type: MessageTypeMessage, Room: "r1", Payload: offer}

	want := []string{TokenBye, MessageTypePeerLeft, MessageTypeJoinRequest, PayloadOffer}
	for i, w := range want {
		ev := recvWithin(t, h.Events, w)
		var got string
		switch {
		case ev.Membership != nil:
			got = string(ev.Membership.Kind)
		case ev.Message != nil:
			got = ev.Message.Type
		}
		if got != w {
			t.Fatalf("event %d: got %q, want %q", i, got, w)
		}
	}
}

func TestHandler_MalformedMessageSurfacesAsError(t *testing.T) {
	incoming := make(chan *Message, 1)
	h := NewHandler(incoming)
	go h.Start()
	defer h.Close()

	incoming <- &Message{Type: MessageTypeMessage, Payload: json.RawMessage(`{"type":"offer"}`)}

	recvWithin(t, h.Errors, "malformed")
	select {
	case ev := <-h.Events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHandler_ClosesChannelsWhenIncomingCloses(t *testing.T) {
	incoming := make(chan *Message)
	h := NewHandler(incoming)
	done := make(chan struct{})
	go func() {
		h.Start()
		close(done)
	}()

	close(incoming)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
	if _, ok := <-h.Events; ok {
		t.Fatal("Events not closed")
	}
}
