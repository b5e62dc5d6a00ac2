// Package tui provides a live terminal dashboard for test sessions.
//
// The dashboard uses Bubble Tea for the event loop and Lipgloss for styling.
// It shows the scenarios of the running test, the phase of the current one,
// the children the launcher observes and, once the test ends, the score.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/scenario-launcher/internal/session"
)

// =============================================================================
// Palette
// =============================================================================

var (
	colorAccent    = lipgloss.Color("#2563EB") // title bar
	colorHighlight = lipgloss.Color("#0EA5E9") // panel titles

	// Answer outcomes
	colorCorrect = lipgloss.Color("#16A34A")
	colorPending = lipgloss.Color("#D97706")
	colorWrong   = lipgloss.Color("#DC2626")

	colorNeutral = lipgloss.Color("#F3F4F6")
	colorDim     = lipgloss.Color("#6B7280")
	colorRule    = lipgloss.Color("#4B5563")
)

// =============================================================================
// Layout
// =============================================================================

var (
	titleBarStyle = lipgloss.NewStyle().
			Foreground(colorNeutral).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorRule)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)

	fieldLabelStyle = lipgloss.NewStyle().
				Foreground(colorDim).
				Width(18)

	fieldValueStyle = lipgloss.NewStyle().
				Foreground(colorNeutral).
				Bold(true)

	columnHeaderStyle = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(colorWrong)
)

// outcomeStyle colors text by answer outcome.
func outcomeStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

// =============================================================================
// Phases
// =============================================================================

type indicator struct {
	text  string
	color lipgloss.Color
}

var (
	preparingIndicator = indicator{"Preparing test...", colorDim}

	phaseIndicators = map[session.Phase]indicator{
		session.PhaseLaunching: {"Launching scenario player...", colorHighlight},
		session.PhaseWaiting:   {"Waiting for the player to submit an answer", colorPending},
		session.PhaseAnswered:  {"✓ Answer received", colorCorrect},
		session.PhaseFinished:  {"✓ Test complete", colorCorrect},
	}
)

func (i indicator) render() string {
	return outcomeStyle(i.color).Render(i.text)
}

// =============================================================================
// Children
// =============================================================================

// childStateStyle colors a launcher state name in the child table.
func childStateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return lipgloss.NewStyle().Foreground(colorCorrect)
	case "starting":
		return lipgloss.NewStyle().Foreground(colorPending)
	case "failed":
		return lipgloss.NewStyle().Foreground(colorWrong)
	default:
		return lipgloss.NewStyle().Foreground(colorDim)
	}
}

// =============================================================================
// Scores
// =============================================================================

// Score bands.
const (
	ScorePass  = 70
	ScoreMerit = 90
)

// GetScoreStyle returns the style for a percentage score: below ScorePass is
// a fail, ScoreMerit and above a merit.
func GetScoreStyle(score int) lipgloss.Style {
	switch {
	case score >= ScoreMerit:
		return outcomeStyle(colorCorrect)
	case score >= ScorePass:
		return outcomeStyle(colorPending)
	default:
		return outcomeStyle(colorWrong)
	}
}

// GetScoreLabel returns a styled score with its band.
func GetScoreLabel(score int) string {
	band := "fail"
	switch {
	case score >= ScoreMerit:
		band = "merit"
	case score >= ScorePass:
		band = "pass"
	}
	return GetScoreStyle(score).Render(fmt.Sprintf("%d%% (%s)", score, band))
}

// =============================================================================
// Rendering helpers
// =============================================================================

// RenderField renders a label and its value on one line.
func RenderField(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		fieldLabelStyle.Render(label+":"),
		fieldValueStyle.Render(value),
	)
}

// Tally glyphs.
const (
	glyphCorrect = "✓"
	glyphWrong   = "✗"
	glyphPending = "○"
)

// RenderTally renders one glyph per scenario: correct answers, then wrong
// ones, then the scenarios still to play.
func RenderTally(correct, answered, total int) string {
	wrong := max(answered-correct, 0)
	pending := max(total-answered, 0)
	correct = max(correct, 0)

	return outcomeStyle(colorCorrect).Render(strings.Repeat(glyphCorrect, correct)) +
		outcomeStyle(colorWrong).Render(strings.Repeat(glyphWrong, wrong)) +
		lipgloss.NewStyle().Foreground(colorDim).Render(strings.Repeat(glyphPending, pending))
}

// RenderMeter renders fraction as a bar of width cells (at least 10)
// followed by the percentage. The bar is clamped to [0, 1]; the percentage
// is not.
func RenderMeter(fraction float64, width int) string {
	width = max(width, 10)
	filled := min(max(int(fraction*float64(width)), 0), width)

	bar := lipgloss.NewStyle().Foreground(colorAccent).Render(strings.Repeat("■", filled)) +
		lipgloss.NewStyle().Foreground(colorRule).Render(strings.Repeat("·", width-filled))

	return bar + fieldValueStyle.Render(fmt.Sprintf(" %3.0f%%", fraction*100))
}
