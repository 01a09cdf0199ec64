package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// scriptedRelay records what the client sends and answers create-or-join
// with "created".
func scriptedRelay(t *testing.T, received chan<- Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
			if msg.Type == MessageTypeCreateOrJoin {
				_ = conn.WriteJSON(Message{Type: MessageTypeCreated, Room: msg.Room})
			}
		}
	}))
}

func TestChannel_JoinSendLeave(t *testing.T) {
	received := make(chan Message, 8)
	srv := scriptedRelay(t, received)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch, err := Dial(ctx, wsURL, "lobby", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	if err := ch.Join(ctx); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if msg := recvWithin(t, received, "create-or-join"); msg.Type != MessageTypeCreateOrJoin || msg.Room != "lobby" {
		t.Fatalf("relay got %+v", msg)
	}
	if ev := recvWithin(t, ch.Events(), "created"); ev.Membership == nil || ev.Membership.Kind != MembershipCreated {
		t.Fatalf("membership: got %+v", ev)
	}

	if err := ch.Send(ctx, Token(TokenGotUserMedia)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg := recvWithin(t, received, "message")
	if msg.Type != MessageTypeMessage || string(msg.Payload) != `"got user media"` {
		t.Fatalf("relay got %+v (%s)", msg, msg.Payload)
	}

	if err := ch.Leave(ctx); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if msg := recvWithin(t, received, "leave"); msg.Type != MessageTypeLeave {
		t.Fatalf("relay got %+v", msg)
	}
}

func TestChannel_SendAfterCloseFails(t *testing.T) {
	received := make(chan Message, 8)
	srv := scriptedRelay(t, received)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "lobby", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	ch.Close()
	ch.Close()

	if err := ch.Send(ctx, Token(TokenBye)); err != ErrClientClosed {
		t.Fatalf("Send after Close: got %v, want ErrClientClosed", err)
	}
}
