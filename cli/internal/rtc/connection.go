package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrConnectionClosed   = errors.New("connection closed")
	ErrControlUnavailable = errors.New("control channel not open")
)

// RemoteTrack describes a track received from the peer.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     media.Kind
}

// Handlers receive connection events. They are called from pion goroutines
// and must not block. Nil handlers are skipped.
type Handlers struct {
	OnCandidate        func(webrtc.ICECandidateInit)
	OnRemoteTrack      func(RemoteTrack)
	OnRemoteTrackEnded func(RemoteTrack)
	OnStateChange      func(webrtc.PeerConnectionState)
	OnControl          func(ControlMessage)
}

// Connection is one peer connection. It is never reused: a new negotiation
// attempt gets a new Connection.
type Connection struct {
	pc       *webrtc.PeerConnection
	handlers Handlers

	mu        sync.Mutex
	pending   []webrtc.ICECandidateInit
	remoteSet bool
	control   *webrtc.DataChannel
	sending   map[webrtc.RTPCodecType]bool
	closed    bool

	closeOnce sync.Once
}

func newConnection(pc *webrtc.PeerConnection, h Handlers) *Connection {
	c := &Connection{
		pc:       pc,
		handlers: h,
		sending:  make(map[webrtc.RTPCodecType]bool),
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil || h.OnCandidate == nil {
			return
		}
		h.OnCandidate(candidate.ToJSON())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state changed", "state", state.String())
		if h.OnStateChange != nil {
			h.OnStateChange(state)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		remote := RemoteTrack{
			ID:       track.ID(),
			StreamID: track.StreamID(),
			Kind:     media.KindOf(track.Kind()),
		}
		slog.Debug("remote track added", "id", remote.ID, "kind", remote.Kind, "codec", track.Codec().MimeType)
		if h.OnRemoteTrack != nil {
			h.OnRemoteTrack(remote)
		}

		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					break
				}
			}
			if h.OnRemoteTrackEnded != nil {
				h.OnRemoteTrackEnded(remote)
			}
		}()
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ControlLabel {
			slog.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		c.bindControl(dc)
	})

	return c
}

func (c *Connection) bindControl(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.control = dc
	c.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		var cm ControlMessage
		if err := msgpack.Unmarshal(msg.Data, &cm); err != nil {
			slog.Warn("dropping malformed control message", "err", err)
			return
		}
		if c.handlers.OnControl != nil {
			c.handlers.OnControl(cm)
		}
	})
}

// AttachLocalMedia adds every track of stream to the connection.
func (c *Connection) AttachLocalMedia(stream *media.Stream) error {
	if stream == nil {
		return nil
	}
	for _, track := range stream.Tracks() {
		sender, err := c.pc.AddTrack(track.Local())
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}

		c.mu.Lock()
		c.sending[track.Kind().RTPCodecType()] = true
		c.mu.Unlock()

		// RTCP must be read for interceptors to run.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

// ensureOfferShape adds receive-only transceivers for kinds we do not send so
// the offer always asks for audio and video, and opens the control channel.
func (c *Connection) ensureOfferShape() error {
	c.mu.Lock()
	var missing []webrtc.RTPCodecType
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if !c.sending[kind] {
			missing = append(missing, kind)
			c.sending[kind] = true
		}
	}
	needControl := c.control == nil
	c.mu.Unlock()

	for _, kind := range missing {
		if _, err := c.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s receiver: %w", kind, err)
		}
	}

	if needControl {
		ordered := true
		dc, err := c.pc.CreateDataChannel(ControlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			return fmt.Errorf("create control channel: %w", err)
		}
		c.bindControl(dc)
	}
	return nil
}

// CreateOffer creates an offer and sets it as the local description. The
// returned description is only valid to send once this returns.
func (c *Connection) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := c.usable(ctx); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.ensureOfferShape(); err != nil {
		return webrtc.SessionDescription{}, err
	}

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *c.pc.LocalDescription(), nil
}

// CreateAnswer answers the applied remote offer and sets the answer as the
// local description.
func (c *Connection) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	if err := c.usable(ctx); err != nil {
		return webrtc.SessionDescription{}, err
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return *c.pc.LocalDescription(), nil
}

// ApplyRemoteDescription sets the remote description and flushes candidates
// that arrived before it.
func (c *Connection) ApplyRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	if err := c.usable(ctx); err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.pc.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("add queued candidate: %w", err)
		}
	}
	return nil
}

// ApplyCandidate adds a remote candidate, queueing it until the remote
// description is set.
func (c *Connection) ApplyCandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	if err := c.usable(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.remoteSet {
		c.pending = append(c.pending, candidate)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// QueuedCandidates returns the number of candidates waiting for the remote
// description.
func (c *Connection) QueuedCandidates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SendControl sends msg over the control data channel.
func (c *Connection) SendControl(msg ControlMessage) error {
	c.mu.Lock()
	dc := c.control
	c.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrControlUnavailable
	}
	b, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode control message: %w", err)
	}
	return dc.Send(b)
}

func (c *Connection) RemoteDescription() *webrtc.SessionDescription {
	return c.pc.RemoteDescription()
}

// Close closes the peer connection. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.pending = nil
		c.mu.Unlock()
		err = c.pc.Close()
	})
	return err
}

func (c *Connection) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	return nil
}
