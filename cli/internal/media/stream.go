package media

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNoDevices is returned by a Capturer that has nothing to capture.
var ErrNoDevices = errors.New("no media devices available")

// Capturer acquires local media. Capture may block until the user or the
// device grants access.
type Capturer interface {
	Capture(ctx context.Context) (*Stream, error)
}

// ReceiveOnly captures nothing. The session gets an empty stream and only
// receives the peer's media.
type ReceiveOnly struct{}

func (ReceiveOnly) Capture(context.Context) (*Stream, error) {
	return NewStream(nil, nil)
}

// Stream groups the local tracks produced by one capture.
type Stream struct {
	id     string
	tracks []*Track

	stopOnce sync.Once
	stop     context.CancelFunc
}

// NewStream builds a stream with a fresh id and one track per kind. stop is
// called once by Close and may be nil.
func NewStream(kinds []Kind, stop context.CancelFunc) (*Stream, error) {
	s := &Stream{id: uuid.NewString(), stop: stop}
	for _, kind := range kinds {
		track, err := NewTrack(kind, s.id)
		if err != nil {
			return nil, err
		}
		s.tracks = append(s.tracks, track)
	}
	return s, nil
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) Tracks() []*Track {
	return s.tracks
}

// FirstTrack returns the first track of kind, or nil.
func (s *Stream) FirstTrack(kind Kind) *Track {
	if s == nil {
		return nil
	}
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

// Close stops capture.
func (s *Stream) Close() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
