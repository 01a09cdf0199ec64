package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary    = lipgloss.Color("#22d3ee")
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
)

var (
	bold = lipgloss.NewStyle().Bold(true)

	TitleStyle   = bold.Foreground(Primary).MarginBottom(1)
	SuccessStyle = bold.Foreground(Success)
	ErrorStyle   = bold.Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = bold
	FooterStyle  = MutedStyle.MarginTop(1)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// StatusStyle is the connection state pill in the call header.
	StatusStyle = bold.Foreground(Foreground).Background(Primary).Padding(0, 1)

	// OffStyle marks a muted microphone or a stopped camera.
	OffStyle = lipgloss.NewStyle().Foreground(Error).Strikethrough(true)

	RoomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Success).
			Padding(1, 2)
)

// Icons used across the call screens
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconMic     = "🎙️"
	IconCamera  = "📷"
	IconCall    = "📞"
	IconStats   = "📊"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

// RoomBanner is printed once the relay accepted the join.
func RoomBanner(room, role string) string {
	content := fmt.Sprintf("%s Joined room %s\n\n%s You are the %s.\n%s Share the room name with the person you want to call.",
		IconRoom, BoldStyle.Foreground(Primary).Render(room),
		IconPeer, BoldStyle.Render(role),
		IconInfo,
	)
	return RoomBoxStyle.Render(content)
}
