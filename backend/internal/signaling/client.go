package signaling

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be less than pongWait

	// SDP with many candidates fits comfortably.
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn

	// Room is the name of the room the client is in. Owned by the hub loop.
	Room string

	// Send is a buffered channel for all outbound messages. The hub writes
	// to it and WritePump drains it to the websocket.
	Send chan *Message

	log zerolog.Logger
}

// NewClient wraps conn. Call Hub.Register and start both pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		ID:   id,
		Hub:  hub,
		Conn: conn,
		Send: make(chan *Message, sendBuffer),
		log:  hub.log.With().Str("client", id[:8]).Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// deliver queues msg without blocking the hub. A client that cannot keep up
// loses the message.
func (c *Client) deliver(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

// ReadPump feeds decoded messages to the hub and unregisters the client when
// the connection ends. It is the only reader of Conn.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		msg := &Message{client: c}
		if err := c.Conn.ReadJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if !c.Hub.broadcast(msg) {
			return
		}
	}
}

func (c *Client) extendReadDeadline() {
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
}

// WritePump drains Send to the connection and keeps it alive with pings. It
// is the only writer of Conn. A closed Send means the hub is done with us.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		var err error
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = c.Conn.WriteJSON(message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.Conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			c.log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}
