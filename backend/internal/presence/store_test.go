package presence

import (
	"context"
	"reflect"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.Join(ctx, "lobby", "a"))
	must(s.Join(ctx, "lobby", "b"))
	must(s.Join(ctx, "attic", "c"))

	got, err := s.Rooms(ctx)
	must(err)
	want := []Occupancy{{Room: "attic", Occupants: 1}, {Room: "lobby", Occupants: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rooms: got %+v, want %+v", got, want)
	}

	must(s.Leave(ctx, "attic", "c"))
	must(s.Leave(ctx, "lobby", "a"))
	must(s.Leave(ctx, "nowhere", "z"))
	got, _ = s.Rooms(ctx)
	want = []Occupancy{{Room: "lobby", Occupants: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rooms after leave: got %+v, want %+v", got, want)
	}

	must(s.Reset(ctx))
	if got, _ := s.Rooms(ctx); len(got) != 0 {
		t.Fatalf("Rooms after reset: %+v", got)
	}
}

func TestRedisStoreKeys(t *testing.T) {
	s := NewRedisStore(nil, " relay-1: ")
	if s.keyRooms != "relay-1:rooms" || s.roomKey("lobby") != "relay-1:room:lobby" {
		t.Fatalf("keys: %q %q", s.keyRooms, s.roomKey("lobby"))
	}
	if NewRedisStore(nil, "").keyRooms != "peercall:rooms" {
		t.Fatal("default prefix not applied")
	}
}
