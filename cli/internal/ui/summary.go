package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CallSummary is printed after the call screen exits.
type CallSummary struct {
	Room         string
	Role         string
	Outcome      string
	Duration     time.Duration
	Negotiations int
	Relay        string
}

func CallSummaryView(title string, s CallSummary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}

	duration := "-"
	if s.Duration > 0 {
		duration = s.Duration.Truncate(time.Second).String()
	}

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.Room},
		{"Role", s.Role},
		{"Outcome", s.Outcome},
		{"Duration", duration},
		{"Connections", fmt.Sprintf("%d", s.Negotiations)},
		{"Relay", s.Relay},
	})
	return t.Render()
}

func RenderCallSummary(title string, s CallSummary) {
	fmt.Println(CallSummaryView(title, s))
}
