package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds the launcher-side numbers for the exit summary.
type SummaryConfig struct {
	// Duration is the total run duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// Launches counts launch attempts by outcome (from metrics.Collector)
	Launches map[string]int64

	// PeakRunning is the most children observed running at once
	PeakRunning int

	// ExitCodes is a map of exit codes to counts (from metrics.Collector)
	ExitCodes map[int]int64

	// LifetimeP50, LifetimeP95 are child lifetime percentiles
	LifetimeP50 time.Duration
	LifetimeP95 time.Duration
}

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// FormatExitSummary formats the session summary shown at program exit.
// history may be nil when no test was recorded.
func FormatExitSummary(history *HistorySummary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                         scenario-launcher Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Peak Running Children:  %d\n\n", cfg.PeakRunning)

	// Launches
	if len(cfg.Launches) > 0 {
		section(&b, "Launches")

		outcomes := make([]string, 0, len(cfg.Launches))
		for o := range cfg.Launches {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)

		for _, o := range outcomes {
			fmt.Fprintf(&b, "  %-22s %s\n", o+":", FormatNumber(cfg.Launches[o]))
		}
		b.WriteString("\n")
	}

	// Child lifetime
	if cfg.LifetimeP50 > 0 || cfg.LifetimeP95 > 0 {
		section(&b, "Child Lifetime")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(cfg.LifetimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(cfg.LifetimeP95))
		b.WriteString("\n")
	}

	// Exit codes
	if len(cfg.ExitCodes) > 0 {
		section(&b, "Exit Codes")

		codes := make([]int, 0, len(cfg.ExitCodes))
		for code := range cfg.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), cfg.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if history != nil && history.Count > 0 {
		section(&b, "Test History")
		b.WriteString(FormatHistory(*history))
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(ruleHeavy)
	return b.String()
}

// FormatHistory renders a history summary as indented key/value lines.
func FormatHistory(h HistorySummary) string {
	if h.Count == 0 {
		return "  No tests recorded.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  Tests:                %d\n", h.Count)
	fmt.Fprintf(&b, "  Mean Score:           %.1f%%\n", h.Mean)
	fmt.Fprintf(&b, "  P50 Score:            %.0f%%\n", h.P50)
	fmt.Fprintf(&b, "  P90 Score:            %.0f%%\n", h.P90)
	fmt.Fprintf(&b, "  Best / Worst:         %d%% / %d%%\n", h.Best, h.Worst)
	fmt.Fprintf(&b, "  Answers:              %d right, %d wrong\n", h.TotalRight, h.TotalWrong)
	if h.Latest != "" {
		fmt.Fprintf(&b, "  Latest:               %s\n", h.Latest)
	}
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(ruleLight)
	pad := (len(ruleLight)/3 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(ruleLight + "\n")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case -1:
		return "(signaled)"
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
