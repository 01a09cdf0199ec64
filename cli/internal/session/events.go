package session

import (
	"context"
	"sync"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/rtc"
	"github.com/pion/webrtc/v4"
)

// event is anything the Run loop consumes from the mailbox.
type event interface{}

type joinEvent struct{}

type mediaReadyEvent struct {
	stream *media.Stream
}

type mediaFailedEvent struct {
	err error
}

type hangupEvent struct {
	ctx   context.Context
	reply chan struct{}
}

type toggleEvent struct {
	kind  media.Kind
	reply chan toggleResult
}

type toggleResult struct {
	enabled bool
	ok      bool
}

// Connection callbacks carry the generation of the connection that raised
// them so the loop can drop events from torn-down connections.
type candidateEvent struct {
	gen  uint64
	init webrtc.ICECandidateInit
}

type remoteTrackEvent struct {
	gen   uint64
	track rtc.RemoteTrack
	ended bool
}

type connStateEvent struct {
	gen   uint64
	state webrtc.PeerConnectionState
}

type controlEvent struct {
	gen uint64
	msg rtc.ControlMessage
}

// opDoneEvent reports an operation that ran on the connection worker.
type opDoneEvent struct {
	gen    uint64
	op     string
	send   *webrtc.SessionDescription
	remote string
	err    error
}

// mailbox is an unbounded FIFO of events. push never blocks, so pion
// callbacks and worker completions cannot stall behind the loop.
type mailbox struct {
	mu     sync.Mutex
	items  []event
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e event) {
	m.mu.Lock()
	m.items = append(m.items, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

// opQueue runs connection operations one at a time in submission order.
type opQueue struct {
	mu     sync.Mutex
	items  []func()
	notify chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

func newOpQueue() *opQueue {
	q := &opQueue{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *opQueue) push(op func()) {
	q.mu.Lock()
	q.items = append(q.items, op)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *opQueue) run() {
	for {
		select {
		case <-q.stop:
			return
		case <-q.notify:
		}

		for {
			select {
			case <-q.stop:
				return
			default:
			}

			q.mu.Lock()
			if len(q.items) == 0 {
				q.mu.Unlock()
				break
			}
			op := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()

			op()
		}
	}
}

// close drops queued operations. An operation already running finishes.
func (q *opQueue) close() {
	q.stopOnce.Do(func() {
		close(q.stop)
		q.mu.Lock()
		q.items = nil
		q.mu.Unlock()
	})
}
