package session

import (
	"context"
	"errors"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/rtc"
)

// Controls is the user-facing surface of a session: mic and camera toggles
// and hang-up.
type Controls struct {
	c *Coordinator
}

func (c *Coordinator) Controls() Controls {
	return Controls{c: c}
}

// ToggleMic flips the first local audio track. ok is false when there is no
// audio track.
func (ctl Controls) ToggleMic() (enabled, ok bool) {
	return ctl.c.toggle(media.KindAudio)
}

// ToggleVideo flips the first local video track. ok is false when there is
// no video track.
func (ctl Controls) ToggleVideo() (enabled, ok bool) {
	return ctl.c.toggle(media.KindVideo)
}

// Hangup ends the call locally.
func (ctl Controls) Hangup(ctx context.Context) error {
	return ctl.c.Hangup(ctx)
}

func (c *Coordinator) onToggle(kind media.Kind) toggleResult {
	track := c.local.FirstTrack(kind)
	if track == nil {
		return toggleResult{}
	}
	enabled := track.Toggle()
	c.logger.Info("local track toggled", "kind", kind, "enabled", enabled)
	c.emit(UpdateLocalMedia, nil)
	c.announceMediaState()
	return toggleResult{enabled: enabled, ok: true}
}

// announceMediaState tells the peer which local tracks are enabled.
func (c *Coordinator) announceMediaState() {
	if c.conn == nil {
		return
	}
	state := rtc.MediaState{}
	if t := c.local.FirstTrack(media.KindAudio); t != nil {
		state.Audio = t.Enabled()
	}
	if t := c.local.FirstTrack(media.KindVideo); t != nil {
		state.Video = t.Enabled()
	}

	msg, err := rtc.NewControlMessage(rtc.ControlMediaState, state)
	if err != nil {
		c.logger.Warn("encode media state", "err", err)
		return
	}
	if err := c.conn.SendControl(msg); err != nil {
		if errors.Is(err, rtc.ErrControlUnavailable) {
			c.logger.Debug("control channel not open, media state not sent")
			return
		}
		c.logger.Warn("send media state", "err", err)
	}
}
