package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BioHazard786/peercall/cli/internal/rooms"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user leaves a prompt without answering.
var ErrCancelled = errors.New("cancelled")

// roomPrompt asks for a room name. An empty answer takes the suggestion.
type roomPrompt struct {
	input      textinput.Model
	suggestion string
	room       string
	err        string
	cancelled  bool
}

func newRoomPrompt(suggestion string) roomPrompt {
	ti := textinput.New()
	ti.Prompt = IconRoom + " Room: "
	ti.Placeholder = suggestion
	ti.CharLimit = rooms.MaxLength
	ti.Width = 40
	ti.Focus()
	return roomPrompt{input: ti, suggestion: suggestion}
}

func (m roomPrompt) Init() tea.Cmd {
	return textinput.Blink
}

func (m roomPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				value = m.suggestion
			}
			room, err := rooms.Normalize(value)
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.room = room
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = ""
	return m, cmd
}

func (m roomPrompt) View() string {
	if m.room != "" || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Which room do you want to join?"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(ErrorStyle.Render(m.err) + "\n")
	}
	b.WriteString(FooterStyle.Render(fmt.Sprintf("enter to accept %q · esc to cancel", m.suggestion)))
	return b.String()
}

// PromptRoom asks the user for a room name, offering a generated one.
func PromptRoom() (string, error) {
	suggestion, err := rooms.Suggest()
	if err != nil {
		return "", err
	}

	final, err := tea.NewProgram(newRoomPrompt(suggestion)).Run()
	if err != nil {
		return "", fmt.Errorf("room prompt: %w", err)
	}
	m := final.(roomPrompt)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.room, nil
}
