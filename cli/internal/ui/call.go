package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/peercall/cli/internal/media"
	"github.com/BioHazard786/peercall/cli/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
)

const maxEvents = 5

// CallControls is what the call screen can do to the session.
type CallControls interface {
	ToggleMic() (enabled, ok bool)
	ToggleVideo() (enabled, ok bool)
}

type updateMsg session.Update

// sessionEndedMsg is sent when the updates channel closes.
type sessionEndedMsg struct{}

type tickMsg time.Time

// CallModel is the live call screen. It renders session updates and maps
// keys onto the session controls. Quitting the program means hang up.
type CallModel struct {
	controls CallControls
	updates  <-chan session.Update

	snap        session.Snapshot
	spinner     spinner.Model
	events      []string
	notice      string
	connectedAt time.Time
	talked      time.Duration
	now         time.Time

	hangup bool
	ended  bool
}

func NewCallModel(controls CallControls, updates <-chan session.Update, initial session.Snapshot) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		controls: controls,
		updates:  updates,
		snap:     initial,
		spinner:  s,
		now:      time.Now(),
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *CallModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return sessionEndedMsg{}
		}
		return updateMsg(u)
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			m.toggle(media.KindAudio)
		case "v":
			m.toggle(media.KindVideo)
		case "h", "q", "ctrl+c":
			m.hangup = true
			return m, tea.Quit
		}
		return m, nil

	case updateMsg:
		m.apply(session.Update(msg))
		return m, m.waitForUpdate()

	case sessionEndedMsg:
		m.ended = true
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) toggle(kind media.Kind) {
	var enabled, ok bool
	if kind == media.KindAudio {
		enabled, ok = m.controls.ToggleMic()
	} else {
		enabled, ok = m.controls.ToggleVideo()
	}

	switch {
	case !ok:
		m.notice = fmt.Sprintf("no local %s track", kind)
	case enabled:
		m.notice = fmt.Sprintf("%s on", kind)
	default:
		m.notice = fmt.Sprintf("%s off", kind)
	}
}

func (m *CallModel) apply(u session.Update) {
	prev := m.snap.ConnectionState
	m.snap = u.Snapshot

	connected := m.snap.Status == session.StatusStarted && m.snap.ConnectionState == webrtc.PeerConnectionStateConnected
	switch {
	case connected && prev != webrtc.PeerConnectionStateConnected:
		m.connectedAt = time.Now()
		m.now = m.connectedAt
	case !connected && !m.connectedAt.IsZero():
		m.talked += time.Since(m.connectedAt)
		m.connectedAt = time.Time{}
	}

	switch u.Kind {
	case session.UpdateRemoteStreamAdded:
		m.event("peer media arrived")
	case session.UpdateRemoteStreamRemoved:
		m.event("peer media ended")
	case session.UpdateRemoteHangup:
		m.event("peer hung up")
	case session.UpdatePeerLeft:
		m.event("peer left the room")
	case session.UpdateError:
		if u.Err != nil {
			m.event(ErrorStyle.Render(u.Err.Error()))
		}
	}
}

func (m *CallModel) event(line string) {
	m.events = append(m.events, line)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

// HungUp reports whether the user asked to end the call.
func (m *CallModel) HungUp() bool {
	return m.hangup
}

// Ended reports whether the session finished on its own.
func (m *CallModel) Ended() bool {
	return m.ended
}

// TalkTime is the total time spent connected to a peer.
func (m *CallModel) TalkTime() time.Duration {
	if m.connectedAt.IsZero() {
		return m.talked
	}
	return m.talked + time.Since(m.connectedAt)
}

// Snapshot is the last state the screen rendered.
func (m *CallModel) Snapshot() session.Snapshot {
	return m.snap
}

func (m *CallModel) View() string {
	if m.hangup || m.ended {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s  %s\n\n", IconCall, BoldStyle.Render(m.snap.Room), StatusStyle.Render(m.stateLabel()))

	fmt.Fprintf(&b, "  %s %s\n", IconPeer, m.peerLine())
	fmt.Fprintf(&b, "  %s %s   %s %s\n",
		IconMic, onOff(m.snap.HasLocalMedia && m.snap.LocalAudio),
		IconCamera, onOff(m.snap.HasLocalMedia && m.snap.LocalVideo),
	)
	if !m.connectedAt.IsZero() {
		fmt.Fprintf(&b, "  %s\n", MutedStyle.Render("in call for "+m.now.Sub(m.connectedAt).Truncate(time.Second).String()))
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			fmt.Fprintf(&b, "  %s\n", MutedStyle.Render("· ")+e)
		}
	}
	if m.notice != "" {
		fmt.Fprintf(&b, "\n  %s\n", WarningStyle.Render(m.notice))
	}

	b.WriteString(FooterStyle.Render("m mic · v video · h hang up"))
	return b.String()
}

func (m *CallModel) stateLabel() string {
	switch {
	case m.snap.State == session.StateClosed:
		return "closed"
	case m.snap.Role == session.RoleUnassigned:
		return "joining"
	case m.snap.Status == session.StatusStarted:
		if m.snap.ConnectionState == webrtc.PeerConnectionStateConnected {
			return "connected"
		}
		return "connecting " + m.spinner.View()
	case !m.snap.HasLocalMedia:
		return "waiting for media " + m.spinner.View()
	case m.snap.Role == session.RoleInitiator && !m.snap.Ready:
		return "waiting for peer " + m.spinner.View()
	default:
		return "waiting " + m.spinner.View()
	}
}

func (m *CallModel) peerLine() string {
	if m.snap.Status != session.StatusStarted {
		return MutedStyle.Render("no peer connected")
	}
	if len(m.snap.RemoteTracks) == 0 {
		return MutedStyle.Render("peer joined, no media yet")
	}

	var kinds []string
	for _, t := range m.snap.RemoteTracks {
		label := string(t.Kind)
		if rm := m.snap.RemoteMedia; rm != nil {
			if (t.Kind == media.KindAudio && !rm.Audio) || (t.Kind == media.KindVideo && !rm.Video) {
				label = OffStyle.Render(label)
			}
		}
		kinds = append(kinds, label)
	}
	return "peer sending " + strings.Join(kinds, ", ")
}

func onOff(on bool) string {
	if on {
		return SuccessStyle.Render("on")
	}
	return OffStyle.Render("off")
}

// RunCall shows the call screen until the user hangs up or the session ends.
func RunCall(controls CallControls, updates <-chan session.Update, initial session.Snapshot) (*CallModel, error) {
	model := NewCallModel(controls, updates, initial)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return model, fmt.Errorf("call screen: %w", err)
	}
	return final.(*CallModel), nil
}
