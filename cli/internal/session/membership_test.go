package session

import (
	"errors"
	"testing"

	"github.com/BioHazard786/peercall/cli/internal/signaling"
)

func apply(tr *Tracker, kinds ...signaling.MembershipKind) Change {
	var last Change
	for _, k := range kinds {
		last = tr.Apply(signaling.MembershipEvent{Kind: k, Room: "room"})
	}
	return last
}

func TestTracker_Transitions(t *testing.T) {
	cases := []struct {
		name      string
		events    []signaling.MembershipKind
		wantRole  Role
		wantReady bool
	}{
		{"created", []signaling.MembershipKind{signaling.MembershipCreated}, RoleInitiator, false},
		{"created then join-request", []signaling.MembershipKind{signaling.MembershipCreated, signaling.MembershipJoinRequest}, RoleInitiator, true},
		{"joined", []signaling.MembershipKind{signaling.MembershipJoined}, RoleResponder, true},
		{"join-request before role", []signaling.MembershipKind{signaling.MembershipJoinRequest}, RoleUnassigned, false},
		{"role is assigned once", []signaling.MembershipKind{signaling.MembershipCreated, signaling.MembershipJoined}, RoleInitiator, true},
		{"peer left", []signaling.MembershipKind{signaling.MembershipCreated, signaling.MembershipJoinRequest, signaling.MembershipPeerLeft}, RoleInitiator, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(nil)
			apply(tr, tc.events...)
			if tr.Role() != tc.wantRole {
				t.Fatalf("Role: got %s, want %s", tr.Role(), tc.wantRole)
			}
			if tr.Ready() != tc.wantReady {
				t.Fatalf("Ready: got %v, want %v", tr.Ready(), tc.wantReady)
			}
		})
	}
}

func TestTracker_FullIsCapacityError(t *testing.T) {
	tr := NewTracker(nil)
	ch := apply(tr, signaling.MembershipFull)
	if !errors.Is(ch.Err, ErrCapacity) {
		t.Fatalf("Err: got %v, want ErrCapacity", ch.Err)
	}
	if tr.Role() != RoleUnassigned || tr.Ready() {
		t.Fatalf("full must not assign role or readiness: %s %v", tr.Role(), tr.Ready())
	}
}

func TestTracker_ResetKeepsRole(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, signaling.MembershipJoined)
	tr.ResetReadiness()
	if tr.Role() != RoleResponder || tr.Ready() {
		t.Fatalf("after reset: role %s ready %v", tr.Role(), tr.Ready())
	}
	if ch := apply(tr, signaling.MembershipJoinRequest); !ch.ReadyChanged || !tr.Ready() {
		t.Fatalf("join-request after reset: %+v ready %v", ch, tr.Ready())
	}
}
