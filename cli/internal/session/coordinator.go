package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/rtc"
	"github.com/BioHazard786/peercall/cli/internal/signaling"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

const (
	sendTimeout   = 5 * time.Second
	updatesBuffer = 128
)

// Signaler sends to the relay on behalf of one room.
type Signaler interface {
	Join(ctx context.Context) error
	Send(ctx context.Context, p signaling.Payload) error
	Leave(ctx context.Context) error
}

// Inbound delivers what the relay sends to this participant, in the order
// the relay sent it.
type Inbound interface {
	Events() <-chan signaling.Event
}

// Connection is the part of rtc.Connection the coordinator drives.
type Connection interface {
	AttachLocalMedia(stream *media.Stream) error
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	ApplyRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error
	ApplyCandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error
	SendControl(msg rtc.ControlMessage) error
	Close() error
}

// Connector allocates a fresh Connection per negotiation attempt.
type Connector interface {
	NewConnection(ctx context.Context, h rtc.Handlers) (Connection, error)
}

// ReadyConnector is a Connector that needs setup before its first
// allocation, such as TURN provisioning. The coordinator keeps handling
// events while it waits and allocates nothing until Ready's channel closes.
type ReadyConnector interface {
	Connector
	Ready(ctx context.Context) <-chan struct{}
}

type managerConnector struct {
	m *rtc.Manager
}

func (mc managerConnector) NewConnection(ctx context.Context, h rtc.Handlers) (Connection, error) {
	conn, err := mc.m.NewConnection(ctx, h)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (mc managerConnector) Ready(ctx context.Context) <-chan struct{} {
	return mc.m.Ready(ctx)
}

// FromManager returns a Connector backed by m.
func FromManager(m *rtc.Manager) ReadyConnector {
	return managerConnector{m: m}
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	Room      string
	Signaler  Signaler
	Inbound   Inbound
	Connector Connector
	Logger    *slog.Logger
}

// Coordinator is the negotiation state machine for one participant in one
// room. All state is owned by the Run goroutine; the exported methods only
// post events to it.
type Coordinator struct {
	cfg    Config
	id     string
	logger *slog.Logger

	mailbox  *mailbox
	updates  chan Update
	snapshot atomic.Pointer[Snapshot]
	done     chan struct{}
	started  atomic.Bool
	err      error

	// Owned by Run.
	ctx          context.Context
	connReady    bool
	tracker      *Tracker
	state        State
	status       Status
	activeAs     Role
	local        *media.Stream
	conn         Connection
	gen          uint64
	ops          *opQueue
	opContext    context.Context
	opCancel     context.CancelFunc
	pending      []webrtc.ICECandidateInit
	offer        *webrtc.SessionDescription
	remoteTracks []rtc.RemoteTrack
	remoteMedia  *rtc.MediaState
	connState    webrtc.PeerConnectionState
	localSDP     string
	remoteSDP    string
	negotiations int
	lastErr      error
	terminal     error
	hungUp       bool
}

// New creates a Coordinator. Call Run to start it.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("session", id[:8], "room", cfg.Room)

	c := &Coordinator{
		cfg:     cfg,
		id:      id,
		logger:  logger,
		mailbox: newMailbox(),
		updates: make(chan Update, updatesBuffer),
		done:    make(chan struct{}),
		tracker: NewTracker(logger),
	}
	snap := c.buildSnapshot()
	c.snapshot.Store(&snap)
	return c
}

// Run processes events until the session hangs up, hits a terminal error,
// or ctx is cancelled. It returns the terminal error, if any.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	c.ctx = ctx

	defer func() {
		c.publish()
		close(c.updates)
		close(c.done)
	}()

	events := c.cfg.Inbound.Events()

	var warming <-chan struct{}
	if rc, ok := c.cfg.Connector.(ReadyConnector); ok {
		warming = rc.Ready(ctx)
	} else {
		c.connReady = true
	}

	for {
		select {
		case <-ctx.Done():
			c.teardown("context cancelled")
			return nil

		case <-warming:
			warming = nil
			c.connReady = true
			c.maybeStart()

		case ev, ok := <-events:
			if !ok {
				events = nil
				c.relayLost()
				break
			}
			c.onEvent(ev)

		case <-c.mailbox.notify:
			for _, e := range c.mailbox.drain() {
				c.handle(e)
			}
		}

		if c.terminal != nil {
			c.teardown("terminal error")
			c.err = c.terminal
			return c.terminal
		}
		if c.hungUp {
			return nil
		}
		c.publish()
	}
}

// Join asks the relay to create or join the room.
func (c *Coordinator) Join(ctx context.Context) error {
	if err := c.cfg.Signaler.Join(ctx); err != nil {
		return NewError("join room", ErrSignaling, err)
	}
	c.mailbox.push(joinEvent{})
	return nil
}

// CaptureMedia acquires local media in the background and hands it to the
// session once available.
func (c *Coordinator) CaptureMedia(ctx context.Context, capturer media.Capturer) {
	go func() {
		stream, err := capturer.Capture(ctx)
		if err != nil {
			c.mailbox.push(mediaFailedEvent{err: err})
			return
		}
		c.mailbox.push(mediaReadyEvent{stream: stream})
	}()
}

// SetLocalMedia hands an already captured stream to the session.
func (c *Coordinator) SetLocalMedia(stream *media.Stream) {
	c.mailbox.push(mediaReadyEvent{stream: stream})
}

// Hangup sends bye, tears the session down and leaves the room. It returns
// once the loop has processed it.
func (c *Coordinator) Hangup(ctx context.Context) error {
	reply := make(chan struct{})
	c.mailbox.push(hangupEvent{ctx: ctx, reply: reply})

	select {
	case <-reply:
		return nil
	case <-c.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) toggle(kind media.Kind) (bool, bool) {
	reply := make(chan toggleResult, 1)
	c.mailbox.push(toggleEvent{kind: kind, reply: reply})

	select {
	case res := <-reply:
		return res.enabled, res.ok
	case <-c.done:
		return false, false
	}
}

// Snapshot returns the latest published state.
func (c *Coordinator) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Updates streams state changes. It is closed when Run returns. Updates are
// dropped when the consumer falls behind; Snapshot always has the latest.
func (c *Coordinator) Updates() <-chan Update {
	return c.updates
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) handle(e event) {
	switch ev := e.(type) {
	case joinEvent:
		if c.state == StateIdle {
			c.state = StateAwaitingPreconditions
			c.emit(UpdateState, nil)
		}

	case mediaReadyEvent:
		c.onMediaReady(ev.stream)

	case mediaFailedEvent:
		c.report(NewError("capture media", ErrMediaUnavailable, ev.err))

	case hangupEvent:
		c.onHangup(ev.ctx)
		close(ev.reply)

	case toggleEvent:
		ev.reply <- c.onToggle(ev.kind)

	case candidateEvent:
		if c.stale(ev.gen) {
			return
		}
		c.send(signaling.CandidatePayload(ev.init))

	case remoteTrackEvent:
		if c.stale(ev.gen) {
			return
		}
		c.onRemoteTrack(ev.track, ev.ended)

	case connStateEvent:
		if c.stale(ev.gen) {
			return
		}
		c.onConnState(ev.state)

	case controlEvent:
		if c.stale(ev.gen) {
			return
		}
		c.onControl(ev.msg)

	case opDoneEvent:
		c.onOpDone(ev)

	default:
		c.logger.Warn("unknown event", "event", e)
	}
}

func (c *Coordinator) onEvent(ev signaling.Event) {
	switch {
	case ev.Membership != nil:
		c.onMembership(*ev.Membership)
	case ev.Message != nil:
		c.onMessage(*ev.Message)
	}
}

func (c *Coordinator) onMembership(ev signaling.MembershipEvent) {
	c.logger.Debug("membership", "kind", ev.Kind)
	ch := c.tracker.Apply(ev)

	if ch.Err != nil {
		c.terminal = ch.Err
		c.report(ch.Err)
		return
	}
	if ch.PeerLeft {
		if c.status == StatusStarted {
			c.teardown("peer left")
		}
		c.dropOffer()
		c.emit(UpdatePeerLeft, nil)
	}
	if c.state == StateIdle {
		c.state = StateAwaitingPreconditions
	}
	if ch.RoleAssigned || ch.ReadyChanged {
		c.emit(UpdateState, nil)
	}
	c.maybeStart()
}

func (c *Coordinator) onMediaReady(stream *media.Stream) {
	if c.local != nil {
		c.logger.Debug("local media already set, closing duplicate")
		stream.Close()
		return
	}
	c.local = stream
	c.logger.Info("local media ready", "stream", stream.ID(), "tracks", len(stream.Tracks()))
	c.emit(UpdateLocalMedia, nil)

	c.send(signaling.Token(signaling.TokenGotUserMedia))
	c.maybeStart()
}

// maybeStart enters Active once local media and readiness are both present,
// or once local media is present and a remote offer is waiting. It is
// level-triggered: every precondition change calls it.
func (c *Coordinator) maybeStart() {
	if c.terminal != nil || c.hungUp {
		return
	}
	if c.status == StatusStarted || c.local == nil || !c.connReady {
		return
	}
	if c.offer != nil {
		desc := *c.offer
		c.offer = nil
		c.start(RoleResponder)
		if c.status == StatusStarted {
			c.answer(desc)
		}
		return
	}
	if !c.tracker.Ready() {
		return
	}
	role := c.tracker.Role()
	if role == RoleUnassigned {
		return
	}
	c.start(role)
}

// start allocates a new connection and enters Active as role.
func (c *Coordinator) start(role Role) {
	c.gen++
	gen := c.gen

	conn, err := c.cfg.Connector.NewConnection(c.ctx, c.handlers(gen))
	if err != nil {
		c.terminal = NewError("create peer connection", ErrResourceCreation, err)
		c.report(c.terminal)
		return
	}

	c.conn = conn
	opCtx, cancel := context.WithCancel(c.ctx)
	c.opContext, c.opCancel = opCtx, cancel
	c.ops = newOpQueue()
	c.localSDP, c.remoteSDP = "", ""
	c.connState = webrtc.PeerConnectionStateNew

	if err := conn.AttachLocalMedia(c.local); err != nil {
		c.fail(NewError("attach local media", ErrNegotiation, err))
		return
	}

	c.state = StateActive
	c.status = StatusStarted
	c.activeAs = role
	c.negotiations++
	c.logger.Info("session started", "as", role, "generation", gen)
	c.emit(UpdateState, nil)

	pending := c.pending
	c.pending = nil
	for _, candidate := range pending {
		c.applyCandidate(opCtx, candidate)
	}

	if role == RoleInitiator {
		c.ops.push(func() {
			desc, err := conn.CreateOffer(opCtx)
			c.mailbox.push(opDoneEvent{gen: gen, op: "create offer", send: &desc, err: err})
		})
	}
}

func (c *Coordinator) handlers(gen uint64) rtc.Handlers {
	return rtc.Handlers{
		OnCandidate: func(init webrtc.ICECandidateInit) {
			c.mailbox.push(candidateEvent{gen: gen, init: init})
		},
		OnRemoteTrack: func(t rtc.RemoteTrack) {
			c.mailbox.push(remoteTrackEvent{gen: gen, track: t})
		},
		OnRemoteTrackEnded: func(t rtc.RemoteTrack) {
			c.mailbox.push(remoteTrackEvent{gen: gen, track: t, ended: true})
		},
		OnStateChange: func(s webrtc.PeerConnectionState) {
			c.mailbox.push(connStateEvent{gen: gen, state: s})
		},
		OnControl: func(m rtc.ControlMessage) {
			c.mailbox.push(controlEvent{gen: gen, msg: m})
		},
	}
}

func (c *Coordinator) opCtx() context.Context {
	return c.opContext
}

// stale reports whether gen belongs to a torn-down connection.
func (c *Coordinator) stale(gen uint64) bool {
	if gen != c.gen || c.conn == nil {
		c.logger.Debug("ignoring event from stale connection", "generation", gen, "current", c.gen)
		return true
	}
	return false
}

func (c *Coordinator) onOpDone(ev opDoneEvent) {
	if c.stale(ev.gen) {
		return
	}
	if ev.err != nil {
		if errors.Is(ev.err, context.Canceled) {
			return
		}
		c.fail(NewError(ev.op, ErrNegotiation, ev.err))
		return
	}
	if ev.remote != "" {
		c.remoteSDP = ev.remote
	}
	if ev.send != nil {
		c.localSDP = ev.send.SDP
		c.send(signaling.DescriptionPayload(*ev.send))
	}
}

// fail reports a negotiation failure and abandons the attempt. The peer is
// told so it does not wait on a connection that will never answer.
func (c *Coordinator) fail(err error) {
	c.report(err)
	c.send(signaling.Token(signaling.TokenBye))
	c.teardown("negotiation failed")
}

func (c *Coordinator) onRemoteTrack(t rtc.RemoteTrack, ended bool) {
	if ended {
		for i, existing := range c.remoteTracks {
			if existing.ID == t.ID && existing.StreamID == t.StreamID {
				c.remoteTracks = append(c.remoteTracks[:i:i], c.remoteTracks[i+1:]...)
				c.emit(UpdateRemoteStreamRemoved, nil)
				return
			}
		}
		return
	}
	c.remoteTracks = append(c.remoteTracks, t)
	c.logger.Info("remote stream added", "stream", t.StreamID, "kind", t.Kind)
	c.emit(UpdateRemoteStreamAdded, nil)
}

func (c *Coordinator) onConnState(state webrtc.PeerConnectionState) {
	c.connState = state
	c.logger.Debug("connection state", "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		c.report(WrapError("peer connection", ErrConnectionFailed, state.String()))
		c.teardown("connection " + state.String())
	default:
		c.emit(UpdateState, nil)
	}
}

func (c *Coordinator) onControl(msg rtc.ControlMessage) {
	switch msg.Type {
	case rtc.ControlMediaState:
		var state rtc.MediaState
		if err := msg.DecodePayload(&state); err != nil {
			c.logger.Warn("bad media-state message", "err", err)
			return
		}
		c.remoteMedia = &state
		c.emit(UpdateRemoteMedia, nil)
	default:
		c.logger.Debug("unknown control message", "type", msg.Type)
	}
}

// relayLost is called when the inbound stream from the relay closes. An
// established call keeps running over the peer connection.
func (c *Coordinator) relayLost() {
	c.report(WrapError("relay", ErrSignaling, "connection to relay lost"))
}

func (c *Coordinator) onHangup(ctx context.Context) {
	if c.hungUp {
		return
	}
	c.logger.Info("hanging up")

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := c.cfg.Signaler.Send(sendCtx, signaling.Token(signaling.TokenBye)); err != nil {
		c.logger.Debug("bye not sent", "err", err)
	}
	c.teardown("local hangup")
	if err := c.cfg.Signaler.Leave(sendCtx); err != nil {
		c.logger.Debug("leave not sent", "err", err)
	}
	c.hungUp = true
}

// teardown closes and discards the current connection. It is safe to call
// in any state and any number of times.
func (c *Coordinator) teardown(reason string) {
	hadConn := c.conn != nil

	c.gen++
	if c.opCancel != nil {
		c.opCancel()
		c.opContext, c.opCancel = nil, nil
	}
	if c.ops != nil {
		c.ops.close()
		c.ops = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("close connection", "err", err)
		}
		c.conn = nil
		c.connState = webrtc.PeerConnectionStateClosed
	}

	c.pending = nil
	c.offer = nil
	c.remoteTracks = nil
	c.remoteMedia = nil
	c.tracker.ResetReadiness()
	c.activeAs = RoleUnassigned

	if c.state == StateClosed && !hadConn {
		return
	}
	c.state = StateClosed
	c.status = StatusClosed
	c.logger.Info("session closed", "reason", reason)
	c.emit(UpdateState, nil)
}

// send relays p to the peer, logging failures.
func (c *Coordinator) send(p signaling.Payload) {
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	if err := c.cfg.Signaler.Send(ctx, p); err != nil {
		c.logger.Warn("send to peer failed", "type", p.Type, "err", err)
	}
}

func (c *Coordinator) report(err error) {
	c.lastErr = err
	c.logger.Warn("session error", "err", err)
	c.emit(UpdateError, err)
}

func (c *Coordinator) emit(kind UpdateKind, err error) {
	snap := c.buildSnapshot()
	c.snapshot.Store(&snap)

	select {
	case c.updates <- Update{Kind: kind, Snapshot: snap, Err: err}:
	default:
		c.logger.Debug("update dropped", "kind", kind)
	}
}

func (c *Coordinator) publish() {
	snap := c.buildSnapshot()
	c.snapshot.Store(&snap)
}

func (c *Coordinator) buildSnapshot() Snapshot {
	snap := Snapshot{
		ID:                c.id,
		Room:              c.cfg.Room,
		State:             c.state,
		Status:            c.status,
		Role:              c.tracker.Role(),
		ActiveAs:          c.activeAs,
		Ready:             c.tracker.Ready(),
		HasLocalMedia:     c.local != nil,
		ConnectionState:   c.connState,
		Generation:        c.gen,
		Negotiations:      c.negotiations,
		LocalSDP:          c.localSDP,
		RemoteSDP:         c.remoteSDP,
		PendingCandidates: len(c.pending),
		PendingOffer:      c.offer != nil,
		Err:               c.lastErr,
	}
	if c.local != nil {
		snap.LocalStream = c.local.ID()
		if t := c.local.FirstTrack(media.KindAudio); t != nil {
			snap.LocalAudio = t.Enabled()
		}
		if t := c.local.FirstTrack(media.KindVideo); t != nil {
			snap.LocalVideo = t.Enabled()
		}
	}
	if len(c.remoteTracks) > 0 {
		snap.RemoteStream = c.remoteTracks[0].StreamID
		snap.RemoteTracks = append([]rtc.RemoteTrack(nil), c.remoteTracks...)
	}
	if c.remoteMedia != nil {
		state := *c.remoteMedia
		snap.RemoteMedia = &state
	}
	return snap
}
