package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
	}

	if m.Done() {
		sections = append(sections, m.renderOutcome())
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the child table.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderChildTable(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	user := m.userName
	if user == "" {
		user = "anonymous"
	}
	header := fmt.Sprintf(
		" scenario-launcher │ Test: %s │ Running: %d │ Elapsed: %s ",
		user,
		m.Running(),
		formatDuration(m.Elapsed()),
	)
	return titleBarStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	lines := []string{
		panelTitleStyle.Render("Scenarios"),
		RenderMeter(m.Progress(), barWidth),
	}

	if m.started {
		p := m.progress
		lines = append(lines,
			RenderField("Answered", fmt.Sprintf("%d/%d", p.Answered, p.Total)),
			RenderField("Answers", RenderTally(p.Correct, p.Answered, p.Total)),
			RenderField("Correct so far", fmt.Sprintf("%d", p.Correct)),
		)
		if p.Scenario != "" {
			lines = append(lines, RenderField("Current", fmt.Sprintf("%d. %s", p.Index+1, filepath.Base(p.Scenario))))
		}
	}
	lines = append(lines, m.renderPhase())

	return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderPhase() string {
	if !m.started {
		return preparingIndicator.render()
	}
	ind, ok := phaseIndicators[m.progress.Phase]
	if !ok {
		return ""
	}
	return ind.render()
}

// =============================================================================
// Outcome
// =============================================================================

func (m Model) renderOutcome() string {
	if m.err != nil {
		content := lipgloss.JoinVertical(lipgloss.Left,
			panelTitleStyle.Render("Test Aborted"),
			errorTextStyle.Render(m.err.Error()),
		)
		return panelStyle.Width(m.width - 2).Render(content)
	}

	r := m.record
	content := lipgloss.JoinVertical(lipgloss.Left,
		panelTitleStyle.Render("Result"),
		lipgloss.JoinHorizontal(lipgloss.Left, fieldLabelStyle.Render("Score:"), GetScoreLabel(r.Score)),
		RenderField("Right", fmt.Sprintf("%d", r.Right)),
		RenderField("Wrong", fmt.Sprintf("%d", r.Wrong)),
		RenderField("Scenarios played", fmt.Sprintf("%d", r.ScenariosPlayed)),
		RenderField("Date", r.Date),
	)
	return panelStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Child Table
// =============================================================================

func (m Model) renderChildTable() string {
	lines := []string{panelTitleStyle.Render("Children")}

	if len(m.snapshot) == 0 {
		lines = append(lines, hintStyle.UnsetMarginTop().Render("No children launched yet"))
		return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	lines = append(lines, columnHeaderStyle.Render(fmt.Sprintf("%-8s %8s %-10s %10s %6s", "KIND", "PID", "STATE", "UPTIME", "EXIT")))
	for _, row := range m.snapshot {
		exit := "-"
		if row.Exited {
			exit = fmt.Sprintf("%d", row.ExitCode)
		}
		state := childStateStyle(row.State).Render(fmt.Sprintf("%-10s", row.State))
		lines = append(lines, fmt.Sprintf("%-8s %8d %s %10s %6s", row.Kind, row.PID, state, formatDuration(row.Uptime), exit))
	}

	return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := []string{"q: quit", "d: toggle children"}
	if m.metricsAddr != "" {
		keys = append(keys, "metrics: http://"+m.metricsAddr+"/metrics")
	}
	return hintStyle.Render(strings.Join(keys, "  •  "))
}
