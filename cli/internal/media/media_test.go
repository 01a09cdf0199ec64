package media

import (
	"context"
	"errors"
	"testing"
)

func TestSynthetic_NoKinds(t *testing.T) {
	_, err := Synthetic{}.Capture(context.Background())
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("Capture: got %v, want ErrNoDevices", err)
	}
}

func TestReceiveOnly_EmptyStream(t *testing.T) {
	stream, err := ReceiveOnly{}.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	defer stream.Close()

	if len(stream.Tracks()) != 0 || stream.ID() == "" {
		t.Fatalf("stream: id %q, %d tracks", stream.ID(), len(stream.Tracks()))
	}
	if stream.FirstTrack(KindAudio) != nil {
		t.Fatal("receive-only stream has an audio track")
	}
}

func TestSynthetic_TracksShareStream(t *testing.T) {
	stream, err := Synthetic{Audio: true, Video: true}.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	defer stream.Close()

	if len(stream.Tracks()) != 2 {
		t.Fatalf("tracks: got %d, want 2", len(stream.Tracks()))
	}
	for _, track := range stream.Tracks() {
		if track.Local().StreamID() != stream.ID() {
			t.Fatalf("%s track stream id %q, want %q", track.Kind(), track.Local().StreamID(), stream.ID())
		}
		if track.Local().Kind() != track.Kind().RTPCodecType() {
			t.Fatalf("%s track has pion kind %s", track.Kind(), track.Local().Kind())
		}
	}
}

func TestTrack_ToggleFirstOfKind(t *testing.T) {
	stream, err := NewStream([]Kind{KindAudio}, nil)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	if stream.FirstTrack(KindVideo) != nil {
		t.Fatal("unexpected video track")
	}
	audio := stream.FirstTrack(KindAudio)
	if audio == nil || !audio.Enabled() {
		t.Fatal("audio track missing or disabled")
	}
	if audio.Toggle() {
		t.Fatal("first Toggle should disable")
	}
	if !audio.Toggle() {
		t.Fatal("second Toggle should enable")
	}

	stream.Close()
	stream.Close()
}
