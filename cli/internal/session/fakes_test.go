package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/rtc"
	"github.com/BioHazard786/peercall/cli/internal/signaling"
	"github.com/pion/webrtc/v4"
)

const waitTimeout = 3 * time.Second

// fakeSignaler records what the coordinator sends to the relay. While gate
// is set, Send blocks until it is closed.
type fakeSignaler struct {
	mu     sync.Mutex
	log    []string
	sent   []signaling.Payload
	joined int
	gate   chan struct{}
}

func (s *fakeSignaler) hold() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func (s *fakeSignaler) Join(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined++
	s.log = append(s.log, "join")
	return nil
}

func (s *fakeSignaler) Send(_ context.Context, p signaling.Payload) error {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, p)
	s.log = append(s.log, "send:"+p.Type)
	return nil
}

func (s *fakeSignaler) Leave(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, "leave")
	return nil
}

func (s *fakeSignaler) count(payloadType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.sent {
		if p.Type == payloadType {
			n++
		}
	}
	return n
}

func (s *fakeSignaler) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func (s *fakeSignaler) waitSent(t *testing.T, payloadType string, n int) {
	t.Helper()
	eventually(t, fmt.Sprintf("%d %q sent", n, payloadType), func() bool {
		return s.count(payloadType) >= n
	})
}

// fakeInbound is fed directly by tests.
type fakeInbound struct {
	events chan signaling.Event
}

func newFakeInbound() *fakeInbound {
	return &fakeInbound{events: make(chan signaling.Event, 64)}
}

func (in *fakeInbound) Events() <-chan signaling.Event { return in.events }

func (in *fakeInbound) member(kind signaling.MembershipKind) {
	in.events <- signaling.Event{Membership: &signaling.MembershipEvent{Kind: kind, Room: "room"}}
}

func (in *fakeInbound) message(p signaling.Payload) {
	in.events <- signaling.Event{Message: &p}
}

// fakeConn records the operations the coordinator runs against it.
type fakeConn struct {
	id       int
	handlers rtc.Handlers

	offerGate chan struct{}
	remoteErr error

	mu       sync.Mutex
	calls    []string
	closed   int
	controls []rtc.ControlMessage
}

func (f *fakeConn) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeConn) AttachLocalMedia(stream *media.Stream) error {
	if stream == nil {
		f.record("attach:none")
		return nil
	}
	f.record("attach")
	return nil
}

func (f *fakeConn) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	if f.offerGate != nil {
		<-f.offerGate
	}
	f.record("offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", f.id)}, nil
}

func (f *fakeConn) CreateAnswer(context.Context) (webrtc.SessionDescription, error) {
	f.record("answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", f.id)}, nil
}

func (f *fakeConn) ApplyRemoteDescription(_ context.Context, desc webrtc.SessionDescription) error {
	f.record("remote:" + desc.Type.String())
	return f.remoteErr
}

func (f *fakeConn) ApplyCandidate(_ context.Context, c webrtc.ICECandidateInit) error {
	f.record("candidate:" + c.Candidate)
	return nil
}

func (f *fakeConn) SendControl(msg rtc.ControlMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, msg)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) waitCalls(t *testing.T, n int) []string {
	t.Helper()
	eventually(t, fmt.Sprintf("%d connection calls", n), func() bool {
		return len(f.history()) >= n
	})
	return f.history()
}

// fakeConnector hands out fakeConns. When ready is set, the coordinator
// must not allocate until it is closed.
type fakeConnector struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	prepare func(*fakeConn)
	ready   chan struct{}
}

func (fc *fakeConnector) Ready(context.Context) <-chan struct{} {
	if fc.ready != nil {
		return fc.ready
	}
	ready := make(chan struct{})
	close(ready)
	return ready
}

func (fc *fakeConnector) NewConnection(_ context.Context, h rtc.Handlers) (Connection, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.err != nil {
		return nil, fc.err
	}
	conn := &fakeConn{id: len(fc.conns) + 1, handlers: h}
	if fc.prepare != nil {
		fc.prepare(conn)
	}
	fc.conns = append(fc.conns, conn)
	return conn, nil
}

func (fc *fakeConnector) count() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.conns)
}

func (fc *fakeConnector) conn(t *testing.T, i int) *fakeConn {
	t.Helper()
	eventually(t, fmt.Sprintf("connection %d", i+1), func() bool { return fc.count() > i })
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.conns[i]
}

// memRelay implements the room protocol in memory. Payloads go through the
// JSON codec as they would over the websocket.
type memRelay struct {
	mu    sync.Mutex
	rooms map[string][]*memEndpoint
}

type memEndpoint struct {
	relay  *memRelay
	room   string
	events chan signaling.Event
}

func newMemRelay() *memRelay {
	return &memRelay{rooms: make(map[string][]*memEndpoint)}
}

func (r *memRelay) endpoint(room string) *memEndpoint {
	return &memEndpoint{
		relay:  r,
		room:   room,
		events: make(chan signaling.Event, 256),
	}
}

func (e *memEndpoint) Events() <-chan signaling.Event { return e.events }

func (e *memEndpoint) notify(kind signaling.MembershipKind) {
	e.events <- signaling.Event{Membership: &signaling.MembershipEvent{Kind: kind, Room: e.room}}
}

func (e *memEndpoint) Join(context.Context) error {
	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants := r.rooms[e.room]
	switch len(occupants) {
	case 0:
		r.rooms[e.room] = []*memEndpoint{e}
		e.notify(signaling.MembershipCreated)
	case 1:
		r.rooms[e.room] = append(occupants, e)
		occupants[0].notify(signaling.MembershipJoinRequest)
		e.notify(signaling.MembershipJoined)
	default:
		e.notify(signaling.MembershipFull)
	}
	return nil
}

func (e *memEndpoint) Send(_ context.Context, p signaling.Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var decoded signaling.Payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}

	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.rooms[e.room] {
		if other != e {
			msg := decoded
			other.events <- signaling.Event{Message: &msg}
		}
	}
	return nil
}

func (e *memEndpoint) Leave(context.Context) error {
	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()

	var rest []*memEndpoint
	for _, o := range r.rooms[e.room] {
		if o != e {
			rest = append(rest, o)
		}
	}
	r.rooms[e.room] = rest
	for _, o := range rest {
		o.notify(signaling.MembershipPeerLeft)
	}
	return nil
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitSnapshot(t *testing.T, c *Coordinator, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	eventually(t, what, func() bool { return cond(c.Snapshot()) })
	return c.Snapshot()
}

// startCoordinator runs a coordinator until the test ends and returns a
// channel with Run's result.
func startCoordinator(t *testing.T, cfg Config) (*Coordinator, <-chan error) {
	t.Helper()
	if cfg.Room == "" {
		cfg.Room = "room"
	}
	c := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, result
}

func testStream(t *testing.T, kinds ...media.Kind) *media.Stream {
	t.Helper()
	stream, err := media.NewStream(kinds, nil)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return stream
}

func candidate(line string) signaling.Payload {
	mid := "0"
	label := uint16(0)
	return signaling.CandidatePayload(webrtc.ICECandidateInit{Candidate: line, SDPMid: &mid, SDPMLineIndex: &label})
}

func offer(sdp string) signaling.Payload {
	return signaling.DescriptionPayload(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func answer(sdp string) signaling.Payload {
	return signaling.DescriptionPayload(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}
