package media

import (
	"context"
	"log/slog"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

const (
	audioFrame = 20 * time.Millisecond
	videoFrame = 33 * time.Millisecond
)

var (
	// Opus comfort-noise frame.
	opusSilence = []byte{0xf8, 0xff, 0xfe}

	// Minimal VP8 keyframe header followed by a blank payload.
	vp8Frame = append([]byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00}, make([]byte, 64)...)
)

// Synthetic captures generated tracks for the enabled kinds. It stands in for
// camera and microphone access on hosts without capture devices and in tests.
type Synthetic struct {
	Audio bool
	Video bool
}

// Capture starts one sample pump per track. The pumps stop when ctx is done or
// the stream is closed.
func (c Synthetic) Capture(ctx context.Context) (*Stream, error) {
	var kinds []Kind
	if c.Audio {
		kinds = append(kinds, KindAudio)
	}
	if c.Video {
		kinds = append(kinds, KindVideo)
	}
	if len(kinds) == 0 {
		return nil, ErrNoDevices
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	stream, err := NewStream(kinds, cancel)
	if err != nil {
		cancel()
		return nil, err
	}

	for _, track := range stream.Tracks() {
		switch track.Kind() {
		case KindAudio:
			go pump(pumpCtx, track, opusSilence, audioFrame)
		case KindVideo:
			go pump(pumpCtx, track, vp8Frame, videoFrame)
		}
	}
	return stream, nil
}

func pump(ctx context.Context, track *Track, frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := track.WriteSample(pionmedia.Sample{Data: frame, Duration: interval}); err != nil {
				slog.Debug("sample write failed", "kind", track.Kind(), "err", err)
			}
		}
	}
}
