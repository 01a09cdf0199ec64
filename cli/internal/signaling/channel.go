package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BioHazard786/peercall/cli/internal/dns"
)

// Channel is the room-scoped view of the relay connection: it sends
// create-or-join/leave requests and peer payloads for one room and exposes the
// inbound event stream.
type Channel struct {
	client  *Client
	handler *Handler
	room    string
}

// Dial connects to the relay at serverURL and returns a Channel for room.
func Dial(ctx context.Context, serverURL, room string, resolver *dns.Resolver) (*Channel, error) {
	client := NewClient(serverURL, resolver)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return NewChannel(client, room), nil
}

// NewChannel wraps an already connected client and starts routing its messages.
func NewChannel(client *Client, room string) *Channel {
	handler := NewHandler(client.Incoming())
	go handler.Start()

	return &Channel{
		client:  client,
		handler: handler,
		room:    room,
	}
}

// Join asks the relay to create the room or join it.
func (c *Channel) Join(ctx context.Context) error {
	return c.client.Send(ctx, &Message{Type: MessageTypeCreateOrJoin, Room: c.room})
}

// Leave releases this participant's slot in the room.
func (c *Channel) Leave(ctx context.Context) error {
	return c.client.Send(ctx, &Message{Type: MessageTypeLeave, Room: c.room})
}

// Send relays p to the other participant.
func (c *Channel) Send(ctx context.Context, p Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.client.Send(ctx, &Message{Type: MessageTypeMessage, Room: c.room, Payload: raw})
}

// Events returns membership changes and peer payloads in arrival order. It is
// closed when the relay connection ends.
func (c *Channel) Events() <-chan Event {
	return c.handler.Events
}

// Errors returns relay-reported errors.
func (c *Channel) Errors() <-chan string {
	return c.handler.Errors
}

// Close tears down the relay connection.
func (c *Channel) Close() {
	c.handler.Close()
	c.client.Close()
}
