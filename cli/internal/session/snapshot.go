package session

import (
	"github.com/BioHazard786/peercall/cli/internal/rtc"
	"github.com/pion/webrtc/v4"
)

// Snapshot is a read-only copy of the coordinator state, published after
// every event the loop handles.
type Snapshot struct {
	ID    string
	Room  string
	State State

	Status   Status
	Role     Role
	ActiveAs Role
	Ready    bool

	HasLocalMedia bool
	LocalStream   string
	LocalAudio    bool
	LocalVideo    bool

	RemoteStream string
	RemoteTracks []rtc.RemoteTrack
	RemoteMedia  *rtc.MediaState

	ConnectionState webrtc.PeerConnectionState
	Generation      uint64
	Negotiations    int

	// LocalSDP and RemoteSDP are the descriptions sent to and applied from
	// the peer on the current connection.
	LocalSDP  string
	RemoteSDP string

	PendingCandidates int
	// PendingOffer is set while a remote offer waits for local media.
	PendingOffer bool
	Err          error
}

// UpdateKind says what changed.
type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateLocalMedia
	UpdateRemoteStreamAdded
	UpdateRemoteStreamRemoved
	UpdateRemoteMedia
	UpdateRemoteHangup
	UpdatePeerLeft
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdateLocalMedia:
		return "local-media"
	case UpdateRemoteStreamAdded:
		return "remote-stream-added"
	case UpdateRemoteStreamRemoved:
		return "remote-stream-removed"
	case UpdateRemoteMedia:
		return "remote-media"
	case UpdateRemoteHangup:
		return "remote-hangup"
	case UpdatePeerLeft:
		return "peer-left"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is sent on the Updates channel.
type Update struct {
	Kind     UpdateKind
	Snapshot Snapshot
	Err      error
}
