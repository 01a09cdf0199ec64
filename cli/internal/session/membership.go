package session

import (
	"log/slog"

	"github.com/BioHazard786/peercall/cli/internal/signaling"
)

// Tracker derives role and readiness from room membership events. It never
// starts negotiation itself.
type Tracker struct {
	role   Role
	ready  bool
	logger *slog.Logger
}

// Change is the effect of one membership event.
type Change struct {
	RoleAssigned bool
	ReadyChanged bool
	PeerLeft     bool
	Err          error
}

func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger}
}

func (t *Tracker) Role() Role {
	return t.role
}

func (t *Tracker) Ready() bool {
	return t.ready
}

// Apply folds ev into the tracker.
func (t *Tracker) Apply(ev signaling.MembershipEvent) Change {
	var ch Change

	switch ev.Kind {
	case signaling.MembershipCreated:
		ch.RoleAssigned = t.assign(RoleInitiator)

	case signaling.MembershipJoined:
		ch.RoleAssigned = t.assign(RoleResponder)
		ch.ReadyChanged = t.markReady()

	case signaling.MembershipJoinRequest:
		if t.role == RoleUnassigned {
			t.logger.Warn("join-request before room membership, ignoring", "room", ev.Room)
			return ch
		}
		ch.ReadyChanged = t.markReady()

	case signaling.MembershipFull:
		ch.Err = WrapError("join room", ErrCapacity, ev.Room)

	case signaling.MembershipPeerLeft:
		ch.PeerLeft = true
		ch.ReadyChanged = t.ready
		t.ready = false

	default:
		t.logger.Debug("unknown membership event", "kind", ev.Kind)
	}
	return ch
}

// ResetReadiness clears readiness after a teardown. The role is kept.
func (t *Tracker) ResetReadiness() {
	t.ready = false
}

func (t *Tracker) assign(r Role) bool {
	if t.role != RoleUnassigned {
		if t.role != r {
			t.logger.Debug("role already assigned", "role", t.role, "ignored", r)
		}
		return false
	}
	t.role = r
	return true
}

func (t *Tracker) markReady() bool {
	if t.ready {
		return false
	}
	t.ready = true
	return true
}
