package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/scenario-launcher/internal/launcher"
	"github.com/randomizedcoder/scenario-launcher/internal/session"
	"github.com/randomizedcoder/scenario-launcher/internal/store"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ProgressMsg carries a session phase change.
type ProgressMsg session.Progress

// ResultMsg carries the outcome of the test session.
type ResultMsg struct {
	Record store.HistoryRecord
	Err    error
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// ChildSource lists the children the launcher observes.
type ChildSource interface {
	Children() []*launcher.Child
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	userName    string
	metricsAddr string
	children    ChildSource

	// Current state
	progress     session.Progress
	started      bool
	snapshot     []ChildRow
	record       *store.HistoryRecord
	err          error
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	quitting bool
}

// ChildRow is a point-in-time view of one child.
type ChildRow struct {
	Kind     string
	PID      int
	State    string
	Uptime   time.Duration
	ExitCode int
	Exited   bool
}

// Config holds TUI configuration.
type Config struct {
	UserName    string
	MetricsAddr string
	Children    ChildSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		userName:    cfg.UserName,
		metricsAddr: cfg.MetricsAddr,
		children:    cfg.Children,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.snapshot = snapshotChildren(m.children, time.Time(msg))
		m.lastUpdate = time.Time(msg)
		return m, tickCmd()

	case ProgressMsg:
		m.progress = session.Progress(msg)
		m.started = true
		m.lastUpdate = time.Now()
		return m, nil

	case ResultMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			rec := msg.Record
			m.record = &rec
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.detailedView {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func snapshotChildren(src ChildSource, now time.Time) []ChildRow {
	if src == nil {
		return nil
	}
	children := src.Children()
	rows := make([]ChildRow, 0, len(children))
	for _, c := range children {
		row := ChildRow{
			Kind:   c.Kind.String(),
			PID:    c.PID,
			State:  c.State().String(),
			Uptime: now.Sub(c.StartTime),
		}
		if res, ok := c.Result(); ok {
			row.Exited = true
			row.ExitCode = res.ExitCode
			row.Uptime = res.Lifetime()
		}
		rows = append(rows, row)
	}
	return rows
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the session started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Progress returns the fraction of scenarios answered (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.progress.Total == 0 {
		return 0
	}
	return float64(m.progress.Answered) / float64(m.progress.Total)
}

// Running returns how many children were running at the last tick.
func (m Model) Running() int {
	n := 0
	for _, r := range m.snapshot {
		if r.State == launcher.StateRunning.String() {
			n++
		}
	}
	return n
}

// Done reports whether the session has ended.
func (m Model) Done() bool {
	return m.record != nil || m.err != nil
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendProgress forwards a session phase change to the TUI.
func SendProgress(p *tea.Program, prog session.Progress) {
	if p != nil {
		p.Send(ProgressMsg(prog))
	}
}

// SendResult sends the session outcome to the TUI.
func SendResult(p *tea.Program, rec store.HistoryRecord, err error) {
	if p != nil {
		p.Send(ResultMsg{Record: rec, Err: err})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
