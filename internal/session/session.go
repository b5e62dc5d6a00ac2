// Package session runs practice and test sessions on top of the launcher.
//
// A test session plays a random selection of scenarios one after another in
// test mode. After each launch it polls the result channel until the player
// publishes its answer, then moves on. When every scenario has answered, the
// score is computed and appended to the history.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/scenario-launcher/internal/launcher"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
	"github.com/randomizedcoder/scenario-launcher/internal/resultchan"
	"github.com/randomizedcoder/scenario-launcher/internal/store"
)

// Selection bounds used when Config leaves them unset.
const (
	DefaultMinScenarios = 3
	DefaultMaxScenarios = 4
	DefaultPollInterval = time.Second
)

var (
	// ErrNoScenarios is returned when a test is started with nothing to play.
	ErrNoScenarios = errors.New("no scenarios available")

	// ErrPlayerExited is returned when the player exits without publishing
	// an answer.
	ErrPlayerExited = errors.New("player exited without an answer")
)

// Launcher is the part of launcher.Launcher a session needs.
type Launcher interface {
	Launch(kind resolver.Kind, req launcher.Request) (*launcher.Child, error)
	TryConsumeResult(path string) (resultchan.Record, bool)
}

// History stores completed tests.
type History interface {
	AppendHistory(rec store.HistoryRecord) error
}

// Metrics receives session events.
type Metrics interface {
	TestCompleted(score int)
}

type noopMetrics struct{}

func (noopMetrics) TestCompleted(int) {}

// Phase is the step a test session is in.
type Phase int

const (
	PhaseLaunching Phase = iota
	PhaseWaiting
	PhaseAnswered
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLaunching:
		return "launching"
	case PhaseWaiting:
		return "waiting"
	case PhaseAnswered:
		return "answered"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Progress is reported on every phase change of a test session.
type Progress struct {
	Index    int // 0-based position of Scenario in the selection
	Total    int
	Scenario string
	Phase    Phase
	Correct  int // answers marked correct so far
	Answered int
}

// User identifies who takes a test.
type User struct {
	ID   string
	Name string
}

// Config holds session dependencies and policy.
type Config struct {
	Launcher Launcher
	History  History

	// ResultPath is the result channel file the player writes.
	ResultPath string

	PollInterval time.Duration
	MinScenarios int
	MaxScenarios int

	// Rand drives scenario selection; nil uses a randomly seeded source.
	Rand *rand.Rand

	// OnProgress, if set, is called synchronously on every phase change.
	OnProgress func(Progress)

	Logger  *slog.Logger
	Metrics Metrics
}

// Runner runs sessions.
type Runner struct {
	launcher   Launcher
	history    History
	resultPath string
	poll       time.Duration
	minCount   int
	maxCount   int
	rng        *rand.Rand
	onProgress func(Progress)
	logger     *slog.Logger
	metrics    Metrics
	now        func() time.Time
}

// New creates a runner.
func New(cfg Config) *Runner {
	r := &Runner{
		launcher:   cfg.Launcher,
		history:    cfg.History,
		resultPath: cfg.ResultPath,
		poll:       cfg.PollInterval,
		minCount:   cfg.MinScenarios,
		maxCount:   cfg.MaxScenarios,
		rng:        cfg.Rand,
		onProgress: cfg.OnProgress,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}

	if r.poll <= 0 {
		r.poll = DefaultPollInterval
	}
	if r.minCount <= 0 {
		r.minCount = DefaultMinScenarios
	}
	if r.maxCount < r.minCount {
		r.maxCount = max(DefaultMaxScenarios, r.minCount)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if r.onProgress == nil {
		r.onProgress = func(Progress) {}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = noopMetrics{}
	}
	return r
}

// =============================================================================
// Practice
// =============================================================================

// Practice plays one scenario in practice mode. Nothing is recorded.
func (r *Runner) Practice(scenarioPath string) (*launcher.Child, error) {
	return r.launcher.Launch(resolver.Player, launcher.Request{
		ScenarioPath: scenarioPath,
		Mode:         launcher.ModePractice,
	})
}

// =============================================================================
// Test
// =============================================================================

// Select picks min(rand(MinScenarios..MaxScenarios), len(available))
// scenarios at random without replacement.
func (r *Runner) Select(available []string) []string {
	if len(available) == 0 {
		return nil
	}
	n := r.minCount + r.rng.IntN(r.maxCount-r.minCount+1)
	n = min(n, len(available))

	perm := r.rng.Perm(len(available))
	out := make([]string, n)
	for i := range out {
		out[i] = available[perm[i]]
	}
	return out
}

// Test selects scenarios from available, plays each one in test mode and
// records the score. It returns the history record that was appended.
//
// A launch failure or a cancelled ctx aborts the session without recording
// anything.
func (r *Runner) Test(ctx context.Context, user User, available []string) (store.HistoryRecord, error) {
	selected := r.Select(available)
	if len(selected) == 0 {
		return store.HistoryRecord{}, ErrNoScenarios
	}

	r.logger.Info("test_started",
		"user_id", user.ID,
		"scenarios", len(selected),
	)

	answers := make([]resultchan.Record, 0, len(selected))
	correct := 0
	for i, scenario := range selected {
		report := func(phase Phase) {
			r.onProgress(Progress{
				Index:    i,
				Total:    len(selected),
				Scenario: scenario,
				Phase:    phase,
				Correct:  correct,
				Answered: len(answers),
			})
		}

		// Step 1: Discard a result left over from an earlier session
		if stale, ok := r.launcher.TryConsumeResult(r.resultPath); ok {
			r.logger.Warn("stale_result_discarded", "path", r.resultPath, "record", map[string]any(stale))
		}

		// Step 2: Launch the player
		report(PhaseLaunching)
		child, err := r.launcher.Launch(resolver.Player, launcher.Request{
			ScenarioPath: scenario,
			Mode:         launcher.ModeTest,
		})
		if err != nil {
			return store.HistoryRecord{}, fmt.Errorf("scenario %d of %d (%s): %w", i+1, len(selected), filepath.Base(scenario), err)
		}

		// Step 3: Wait for the answer
		report(PhaseWaiting)
		answer, err := r.awaitResult(ctx, func() bool { return child.State().IsTerminal() })
		if err != nil {
			return store.HistoryRecord{}, fmt.Errorf("scenario %d of %d (%s): %w", i+1, len(selected), filepath.Base(scenario), err)
		}
		answers = append(answers, answer)
		if ok, _ := answer.Correct(); ok {
			correct++
		}
		report(PhaseAnswered)
	}

	rec := NewTestRecord(user, answers, len(selected), r.now().Format("2006-01-02"))
	if err := r.history.AppendHistory(rec); err != nil {
		return rec, fmt.Errorf("save history: %w", err)
	}
	r.metrics.TestCompleted(rec.Score)

	r.onProgress(Progress{
		Index:    len(selected) - 1,
		Total:    len(selected),
		Phase:    PhaseFinished,
		Correct:  rec.Right,
		Answered: len(answers),
	})
	r.logger.Info("test_completed",
		"user_id", user.ID,
		"score", rec.Score,
		"right", rec.Right,
		"wrong", rec.Wrong,
	)
	return rec, nil
}

// awaitResult polls the result channel until a record arrives or ctx ends.
// Once exited reports the player gone, the channel is polled one more time
// before giving up with ErrPlayerExited.
func (r *Runner) awaitResult(ctx context.Context, exited func() bool) (resultchan.Record, error) {
	if rec, ok := r.launcher.TryConsumeResult(r.resultPath); ok {
		return rec, nil
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	gone := false
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if rec, ok := r.launcher.TryConsumeResult(r.resultPath); ok {
				return rec, nil
			}
			if gone {
				return nil, ErrPlayerExited
			}
			gone = exited()
		}
	}
}

// NewTestRecord scores answers. A record counts as right when its "correct"
// field is true; anything else is wrong. The score is the rounded percentage
// of right answers, with halves rounded to even.
func NewTestRecord(user User, answers []resultchan.Record, played int, date string) store.HistoryRecord {
	right := 0
	for _, a := range answers {
		if ok, _ := a.Correct(); ok {
			right++
		}
	}

	score := 0
	if total := len(answers); total > 0 {
		score = int(math.RoundToEven(float64(right) / float64(total) * 100))
	}

	return store.HistoryRecord{
		UserID:          user.ID,
		Name:            user.Name,
		Score:           score,
		Right:           right,
		Wrong:           len(answers) - right,
		Date:            date,
		ScenariosPlayed: played,
	}
}
