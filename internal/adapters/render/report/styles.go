package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	agent    lipgloss.Style
	reply    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	section  lipgloss.Style
	empty    lipgloss.Style
	toolName lipgloss.Style
	toolMeta lipgloss.Style
	argText  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		agent:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		reply:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		success:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:  lipgloss.NewStyle().MarginTop(1),
		empty:    lipgloss.NewStyle().Faint(true),
		toolName: lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		toolMeta: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		argText:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}
