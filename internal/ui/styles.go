package ui

import (
	"charm.land/lipgloss/v2"
)

// Styles holds the lipgloss styles used by the renderer. One flat struct so
// callers can swap individual styles without touching render code.
type Styles struct {
	Heading    lipgloss.Style // section headings (Sources, Trace)
	Chip       lipgloss.Style // one citation chip, "source p.N"
	ToolBacked lipgloss.Style // label on answers grounded in adapter calls
	NoTools    lipgloss.Style // label on general-knowledge answers
	Failure    lipgloss.Style // failure headline and error markers
	Adapter    lipgloss.Style // adapter names in trace rows
	Muted      lipgloss.Style // ids, durations, separators
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Heading:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Chip:       lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		ToolBacked: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		NoTools:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		Failure:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Adapter:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}
