package stats

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0"},
		{"small", 123, "123"},
		{"1K", 1000, "1.0K"},
		{"1.5K", 1500, "1.5K"},
		{"1M", 1000000, "1.0M"},
		{"negative", -100, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.n); got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{-1, "(signaled)"},
		{0, "(clean)"},
		{1, "(error)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{42, ""},
	}

	for _, tt := range tests {
		if got := exitCodeLabel(tt.code); got != tt.want {
			t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// =============================================================================
// Exit Summary
// =============================================================================

func TestFormatExitSummary_Minimal(t *testing.T) {
	out := FormatExitSummary(nil, SummaryConfig{Duration: 90 * time.Second})

	for _, want := range []string{"Exit Summary", "Run Duration:           00:01:30", "Peak Running Children:  0"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"Launches", "Exit Codes", "Test History", "Metrics endpoint"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("summary unexpectedly contains %q:\n%s", unwanted, out)
		}
	}
}

func TestFormatExitSummary_Full(t *testing.T) {
	history := &HistorySummary{Count: 2, Mean: 83.5, P50: 67, P90: 100, Best: 100, Worst: 67, TotalRight: 6, TotalWrong: 1, Latest: "2024-03-07"}
	cfg := SummaryConfig{
		Duration:    time.Hour,
		MetricsAddr: "127.0.0.1:9100",
		Launches:    map[string]int64{"started": 4, "missing_artifact": 1},
		PeakRunning: 1,
		ExitCodes:   map[int]int64{0: 3, 1: 1},
		LifetimeP50: 2 * time.Minute,
		LifetimeP95: 5 * time.Minute,
	}

	out := FormatExitSummary(history, cfg)

	wants := []string{
		"Peak Running Children:  1",
		"started:",
		"missing_artifact:",
		"P50 (median):         00:02:00",
		"0 (clean)",
		"1 (error)",
		"Tests:                2",
		"Mean Score:           83.5%",
		"Best / Worst:         100% / 67%",
		"Latest:               2024-03-07",
		"http://127.0.0.1:9100/metrics",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	// Outcomes are sorted
	if strings.Index(out, "missing_artifact:") > strings.Index(out, "started:") {
		t.Error("launch outcomes not sorted")
	}
}

func TestFormatHistory_Empty(t *testing.T) {
	if got := FormatHistory(HistorySummary{}); got != "  No tests recorded.\n" {
		t.Errorf("FormatHistory(empty) = %q", got)
	}
}
