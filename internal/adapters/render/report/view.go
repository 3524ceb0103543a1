package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/foundry-agents-cli/internal/domain"
)

const maxArgumentChars = 120

// RunReport collects everything one finished run produced.
type RunReport struct {
	AgentName string
	Run       domain.Run
	Reply     string
	Activity  []domain.StepToolCall
}

type RenderOptions struct {
	// ShowArguments expands each tool call's argument payload.
	ShowArguments bool
}

func renderView(report RunReport, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Run %s", report.Run.ID)),
		s.header.Render(headerLine(report)),
		statusLine(report.Run, s),
	}

	lines = append(lines, s.section.Render(replySection(report, s)))
	lines = append(lines, s.section.Render(activitySection(report, opts, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(report RunReport) string {
	agent := strings.TrimSpace(report.AgentName)
	if agent == "" {
		agent = string(report.Run.AgentID)
	}

	return fmt.Sprintf("agent: %s  thread: %s", agent, report.Run.ThreadID)
}

func statusLine(run domain.Run, s styles) string {
	label := fmt.Sprintf("status: %s", run.Status)
	switch {
	case run.Status.Succeeded():
		return s.success.Render(label)
	case run.Status.Terminal():
		line := s.warning.Render(label)
		if run.LastError != nil {
			line += " " + s.toolMeta.Render(fmt.Sprintf("(%s)", run.LastError.String()))
		}
		return line
	default:
		return s.header.Render(label)
	}
}

func replySection(report RunReport, s styles) string {
	parts := []string{s.agent.Render("Assistant")}
	reply := strings.TrimSpace(report.Reply)
	if reply == "" {
		parts = append(parts, s.empty.Render("(no assistant reply)"))
	} else {
		parts = append(parts, s.reply.Render(reply))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func activitySection(report RunReport, opts RenderOptions, s styles) string {
	parts := []string{s.agent.Render("Tool activity")}
	if len(report.Activity) == 0 {
		parts = append(parts, s.empty.Render("(no tool calls)"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, call := range report.Activity {
		parts = append(parts, toolLine(call, s))
		if opts.ShowArguments && strings.TrimSpace(call.Arguments) != "" {
			parts = append(parts, "    "+s.argText.Render(truncateArguments(call.Arguments)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func toolLine(call domain.StepToolCall, s styles) string {
	name := call.Name
	if name == "" {
		name = call.ID
	}

	line := "  " + s.toolName.Render(name)
	if call.ServerLabel != "" {
		line += " " + s.toolMeta.Render(fmt.Sprintf("@ %s", call.ServerLabel))
	}

	return line
}

func truncateArguments(arguments string) string {
	trimmed := strings.TrimSpace(arguments)
	runes := []rune(trimmed)
	if len(runes) <= maxArgumentChars {
		return trimmed
	}

	return string(runes[:maxArgumentChars]) + "..."
}
