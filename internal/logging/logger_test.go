package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},        // Default
		{"invalid", slog.LevelInfo}, // Default for unknown
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if result := parseLevel(tc.input); result != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "JSON", "", "invalid"} {
		t.Run(format, func(t *testing.T) {
			if logger := NewLogger(format, "info", false); logger == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("launch_started", "target", "player")

	output := buf.String()
	if !strings.Contains(output, `"msg":"launch_started"`) {
		t.Errorf("Expected JSON message, got: %s", output)
	}
	if !strings.Contains(output, `"target":"player"`) {
		t.Errorf("Expected attribute, got: %s", output)
	}
}

func TestNewLoggerWithWriter_TextFallback(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "whatever", "info")
	logger.Info("hello", "k", "v")

	output := buf.String()
	if strings.Contains(output, "{") {
		t.Errorf("Unknown format should fall back to text, got: %s", output)
	}
	if !strings.Contains(output, "k=v") {
		t.Errorf("Expected text attribute, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "text", "error")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "warn message") {
		t.Error("Error-level logger should not log warnings")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error-level logger should log errors")
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger == nil {
		t.Fatal("NewDiscardLogger returned nil")
	}
	// Should not panic
	logger.Error("dropped")
}
