package session

import (
	"context"

	"github.com/BioHazard786/peercall/cli/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// onMessage handles one relayed peer payload.
func (c *Coordinator) onMessage(p signaling.Payload) {
	c.logger.Debug("peer message", "type", p.Type)

	switch p.Type {
	case signaling.PayloadOffer:
		c.onOffer(p)

	case signaling.PayloadAnswer:
		if c.status != StatusStarted {
			c.logger.Debug("answer without a started session, ignoring")
			return
		}
		desc, err := p.Description()
		if err != nil {
			c.logger.Warn("bad answer", "err", err)
			return
		}
		conn, gen, ctx := c.conn, c.gen, c.opCtx()
		c.ops.push(func() {
			err := conn.ApplyRemoteDescription(ctx, desc)
			c.mailbox.push(opDoneEvent{gen: gen, op: "apply answer", remote: desc.SDP, err: err})
		})

	case signaling.PayloadCandidate:
		init, err := p.ICECandidate()
		if err != nil {
			c.logger.Warn("bad candidate", "err", err)
			return
		}
		if c.status != StatusStarted {
			c.pending = append(c.pending, init)
			return
		}
		c.applyCandidate(c.opCtx(), init)

	case signaling.TokenGotUserMedia:
		c.maybeStart()

	case signaling.TokenBye:
		// A held offer counts as a session the peer has started.
		if c.status != StatusStarted && c.offer == nil {
			c.logger.Debug("bye without a started session, ignoring")
			return
		}
		c.logger.Info("remote hung up")
		c.teardown("remote hangup")
		c.emit(UpdateRemoteHangup, nil)

	default:
		c.logger.Debug("unknown peer message", "type", p.Type)
	}
}

// onOffer answers a remote offer. A session that has not started is entered
// as responder whatever role the relay assigned, once local media is there;
// until then the offer waits like early candidates do.
func (c *Coordinator) onOffer(p signaling.Payload) {
	desc, err := p.Description()
	if err != nil {
		c.logger.Warn("bad offer", "err", err)
		return
	}

	if c.status == StatusStarted {
		c.answer(desc)
		return
	}
	if c.terminal != nil || c.hungUp {
		return
	}
	if c.offer != nil {
		c.logger.Debug("replacing an offer that was never answered")
	}
	c.offer = &desc
	c.emit(UpdateState, nil)
	c.maybeStart()
}

func (c *Coordinator) dropOffer() {
	if c.offer != nil {
		c.logger.Debug("dropping unanswered offer")
		c.offer = nil
	}
}

// answer applies desc and replies to it on the current connection.
func (c *Coordinator) answer(desc webrtc.SessionDescription) {
	conn, gen, ctx := c.conn, c.gen, c.opCtx()
	c.ops.push(func() {
		if err := conn.ApplyRemoteDescription(ctx, desc); err != nil {
			c.mailbox.push(opDoneEvent{gen: gen, op: "apply offer", err: err})
			return
		}
		answer, err := conn.CreateAnswer(ctx)
		c.mailbox.push(opDoneEvent{gen: gen, op: "create answer", send: &answer, remote: desc.SDP, err: err})
	})
}

func (c *Coordinator) applyCandidate(ctx context.Context, init webrtc.ICECandidateInit) {
	conn, gen := c.conn, c.gen
	c.ops.push(func() {
		err := conn.ApplyCandidate(ctx, init)
		c.mailbox.push(opDoneEvent{gen: gen, op: "apply candidate", err: err})
	})
}
