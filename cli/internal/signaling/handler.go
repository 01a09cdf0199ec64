package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler decodes incoming relay messages. Membership changes and peer
// payloads share the Events channel so they keep the relay's order.
type Handler struct {
	incoming  <-chan *Message
	Events    chan Event
	Errors    chan string
	closeOnce sync.Once
	stopped   chan struct{}
}

// NewHandler creates a new message handler reading from incoming.
func NewHandler(incoming <-chan *Message) *Handler {
	return &Handler{
		incoming: incoming,
		Events:   make(chan Event, 256),
		Errors:   make(chan string, 16),
		stopped:  make(chan struct{}),
	}
}

// Start routes messages until the incoming channel closes or Close is
// called, then closes the typed channels.
func (h *Handler) Start() {
	defer func() {
		close(h.Events)
		close(h.Errors)
	}()

	for {
		var msg *Message
		select {
		case m, ok := <-h.incoming:
			if !ok {
				return
			}
			msg = m
		case <-h.stopped:
			return
		}

		switch {
		case isMembership(msg.Type):
			h.deliver(Event{Membership: &MembershipEvent{Kind: MembershipKind(msg.Type), Room: msg.Room}})

		case msg.Type == MessageTypeMessage:
			h.handleMessage(msg)

		case msg.Type == MessageTypeError:
			h.handleError(msg)

		default:
			slog.Debug("ignoring relay message", "type", msg.Type)
		}
	}
}

// handleMessage parses the relayed peer payload.
func (h *Handler) handleMessage(msg *Message) {
	var payload Payload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("dropping malformed peer message", "err", err)
		h.deliverError("malformed peer message: " + err.Error())
		return
	}

	h.deliver(Event{Message: &payload})
}

// handleError parses the error message and sends it through the Errors channel.
func (h *Handler) handleError(msg *Message) {
	var errPayload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &errPayload); err != nil || errPayload.Error == "" {
		h.deliverError("unknown error from relay")
		return
	}
	h.deliverError(errPayload.Error)
}

func (h *Handler) deliver(ev Event) {
	select {
	case h.Events <- ev:
	case <-h.stopped:
	}
}

func (h *Handler) deliverError(msg string) {
	select {
	case h.Errors <- msg:
	default:
		slog.Warn("relay error dropped", "error", msg)
	}
}

// Close stops delivery. The typed channels are closed once Start returns.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.stopped)
	})
}
