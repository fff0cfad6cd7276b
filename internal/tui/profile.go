package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/rosteradmin/internal/backend"
)

const (
	profileBusyText       = "Agent is analyzing profile…"
	profileTransportError = "An error occurred while contacting the agent."
	noSkillVectorsText    = "No skill vectors inferred."
	noHistoryLogsText     = "No history logs generated."
)

// profilePanel is the body of the profile dialog. Only the most recent
// request may write to it.
type profilePanel struct {
	request  uint64
	id       int
	title    string
	loading  bool
	result   *backend.ProfileResult
	errorMsg string
}

func (p *profilePanel) start(id int, name string) uint64 {
	p.request++
	p.id = id
	p.title = fmt.Sprintf("AI Profile Agent Analysis for %s", name)
	p.loading = true
	p.result = nil
	p.errorMsg = ""
	return p.request
}

// Lines is the rendered body, one entry per visual line.
func (p *profilePanel) Lines() []string {
	if p.loading {
		return []string{profileBusyText}
	}
	if p.errorMsg != "" {
		return []string{p.errorMsg}
	}
	if p.result == nil {
		return nil
	}
	lines := []string{"Inferred Skill Vectors"}
	if len(p.result.SkillVectors) == 0 {
		lines = append(lines, noSkillVectorsText)
	}
	for _, v := range p.result.SkillVectors {
		lines = append(lines, fmt.Sprintf("%s: %s", v.Skill, v.Level))
	}
	lines = append(lines, "History Logs")
	if len(p.result.HistoryLogs) == 0 {
		lines = append(lines, noHistoryLogsText)
	}
	lines = append(lines, p.result.HistoryLogs...)
	return lines
}

// HistoryLines returns just the rendered history section entries.
func (p *profilePanel) HistoryLines() []string {
	if p.result == nil {
		return nil
	}
	return append([]string(nil), p.result.HistoryLogs...)
}

var (
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	errorTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func (p *profilePanel) View() string {
	if p.loading {
		return mutedStyle.Render(profileBusyText)
	}
	if p.errorMsg != "" {
		return errorTextStyle.Render(p.errorMsg)
	}
	if p.result == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Inferred Skill Vectors"))
	b.WriteString("\n")
	if len(p.result.SkillVectors) == 0 {
		b.WriteString(mutedStyle.Render(noSkillVectorsText) + "\n")
	}
	for _, v := range p.result.SkillVectors {
		fmt.Fprintf(&b, "• %s: %s\n", v.Skill, v.Level)
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("History Logs"))
	b.WriteString("\n")
	if len(p.result.HistoryLogs) == 0 {
		b.WriteString(mutedStyle.Render(noHistoryLogsText) + "\n")
	}
	for _, line := range p.result.HistoryLogs {
		b.WriteString("• " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
