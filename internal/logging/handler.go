package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// MaxLineLength is the maximum length of a single output line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per stream.
	MaxBufferedLines = 100
)

// FailurePatterns are the case-insensitive tokens that mark a child output
// line as worth forwarding. JavaFX prints plenty of benign warnings; only
// these reach the log at warn level.
var FailurePatterns = []string{
	"error",
	"exception",
}

// OutputHandler handles one output stream (stdout or stderr) of a launched
// child. It keeps the most recent lines for diagnostics and forwards lines
// that look like failures.
//
// OutputHandler implements drain.LineParser.
type OutputHandler struct {
	target  string // "editor" or "player"
	stream  string // "stdout" or "stderr"
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	count  int
	mu     sync.Mutex

	failures atomic.Int64
}

// NewOutputHandler creates a handler for one stream of a child process.
func NewOutputHandler(target, stream string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		target:  target,
		stream:  stream,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// ParseLine records a single line and forwards it if it indicates failure.
func (h *OutputHandler) ParseLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	if h.count < MaxBufferedLines {
		h.count++
	}
	h.mu.Unlock()

	if IsFailureLine(line) {
		h.failures.Add(1)
		h.logger.Warn("child_output",
			"target", h.target,
			"stream", h.stream,
			"line", line,
		)
		return
	}

	// Benign output only shows up in verbose mode
	if h.verbose {
		h.logger.Log(context.Background(), slog.LevelDebug, "child_output",
			"target", h.target,
			"stream", h.stream,
			"line", line,
		)
	}
}

// IsFailureLine reports whether a line contains any failure pattern.
func IsFailureLine(line string) bool {
	lower := strings.ToLower(line)
	for _, pattern := range FailurePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > h.count {
		n = h.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// Text returns all buffered lines joined by newlines.
func (h *OutputHandler) Text() string {
	return strings.Join(h.RecentLines(MaxBufferedLines), "\n")
}

// Failures returns how many failure lines were seen.
func (h *OutputHandler) Failures() int64 {
	return h.failures.Load()
}

// Stream returns "stdout" or "stderr".
func (h *OutputHandler) Stream() string {
	return h.stream
}
