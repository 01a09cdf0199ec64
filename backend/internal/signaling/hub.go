package signaling

import (
	"context"
	"time"

	"github.com/BioHazard786/peercall/backend/internal/presence"
	"github.com/rs/zerolog"
)

const presenceTimeout = 2 * time.Second

// Hub owns every room and client. All state is touched only by Run.
type Hub struct {
	rooms map[string]*Room

	register     chan *Client
	unregisterCh chan *Client
	inbound      chan *Message

	presence presence.Store
	log      zerolog.Logger
	done     chan struct{}
}

// NewHub creates a Hub that mirrors room occupancy into store.
func NewHub(store presence.Store, log zerolog.Logger) *Hub {
	return &Hub{
		rooms:        make(map[string]*Room),
		register:     make(chan *Client),
		unregisterCh: make(chan *Client),
		inbound:      make(chan *Message),
		presence:     store,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Register hands a new connection to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) broadcast(m *Message) bool {
	select {
	case h.inbound <- m:
		return true
	case <-h.done:
		return false
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if err := h.mirror(ctx, h.presence.Reset); err != nil {
		h.log.Warn().Err(err).Msg("presence reset failed")
	}

	clients := make(map[*Client]struct{})
	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.Send)
			}
			h.log.Info().Int("clients", len(clients)).Msg("hub stopped")
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			c.log.Debug().Msg("client registered")

		case c := <-h.unregisterCh:
			if _, ok := clients[c]; !ok {
				continue
			}
			h.leave(ctx, c)
			delete(clients, c)
			close(c.Send)
			c.log.Debug().Msg("client unregistered")

		case m := <-h.inbound:
			h.handle(ctx, m)
		}
	}
}

func (h *Hub) handle(ctx context.Context, m *Message) {
	c := m.client
	switch m.Type {
	case TypeCreateOrJoin:
		h.join(ctx, c, m.Room)

	case TypeLeave:
		h.leave(ctx, c)

	case TypeMessage:
		h.relay(c, m)

	default:
		c.log.Debug().Str("type", m.Type).Msg("unknown message type")
		c.deliver(errorMessage("unknown message type: " + m.Type))
	}
}

func (h *Hub) join(ctx context.Context, c *Client, name string) {
	if name == "" || len(name) > MaxRoomLength {
		c.deliver(errorMessage("invalid room name"))
		return
	}
	if c.Room == name {
		c.deliver(errorMessage("already in room " + name))
		return
	}
	if c.Room != "" {
		h.leave(ctx, c)
	}

	room, ok := h.rooms[name]
	switch {
	case !ok:
		room = &Room{Name: name}
		h.rooms[name] = room
		h.admit(ctx, c, room)
		c.log.Info().Str("room", name).Msg("room created")
		c.deliver(&Message{Type: TypeCreated, Room: name})

	case room.full():
		c.log.Info().Str("room", name).Msg("room full")
		c.deliver(&Message{Type: TypeFull, Room: name})

	default:
		occupant := room.other(c)
		h.admit(ctx, c, room)
		c.log.Info().Str("room", name).Msg("joined room")
		if occupant != nil {
			occupant.deliver(&Message{Type: TypeJoinRequest, Room: name})
		}
		c.deliver(&Message{Type: TypeJoined, Room: name})
	}
}

func (h *Hub) admit(ctx context.Context, c *Client, room *Room) {
	room.add(c)
	c.Room = room.Name
	err := h.mirror(ctx, func(ctx context.Context) error {
		return h.presence.Join(ctx, room.Name, c.ID)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("room", room.Name).Msg("presence join failed")
	}
}

// leave removes c from its room and tells the remaining member.
func (h *Hub) leave(ctx context.Context, c *Client) {
	if c.Room == "" {
		return
	}
	name := c.Room
	c.Room = ""

	room, ok := h.rooms[name]
	if !ok || !room.remove(c) {
		return
	}
	err := h.mirror(ctx, func(ctx context.Context) error {
		return h.presence.Leave(ctx, name, c.ID)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("room", name).Msg("presence leave failed")
	}

	if len(room.Members) == 0 {
		delete(h.rooms, name)
		h.log.Info().Str("room", name).Msg("room deleted")
		return
	}
	c.log.Info().Str("room", name).Msg("left room")
	for _, m := range room.Members {
		m.deliver(&Message{Type: TypePeerLeft, Room: name})
	}
}

// relay forwards a peer message to the other member of the sender's room.
func (h *Hub) relay(c *Client, m *Message) {
	if c.Room == "" {
		c.deliver(errorMessage("join a room first"))
		return
	}
	room, ok := h.rooms[c.Room]
	if !ok {
		c.deliver(errorMessage("room not found"))
		return
	}

	target := room.other(c)
	if target == nil {
		c.log.Debug().Str("room", c.Room).Msg("no peer to relay to")
		return
	}
	target.deliver(&Message{Type: TypeMessage, Room: c.Room, Payload: m.Payload})
}

// mirror runs a presence update with its own deadline.
func (h *Hub) mirror(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceTimeout)
	defer cancel()
	return op(ctx)
}
