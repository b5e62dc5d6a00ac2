// Package launcher starts the scenario editor and player as detached
// children and hands their results back through the result channel.
//
// A launch goes through these steps:
//
//  1. Resolve the target (missing primary artifact fails fast)
//  2. Build the invocation (-jar or -cp mode)
//  3. Spawn with stdout/stderr on OS pipes, detached from the terminal
//  4. Sleep the grace interval, then check liveness without blocking
//  5. Running: hand the pipes to a background observer and return
//     Exited: drain what is left (bounded), log it, fail
//
// Once a child is running the launcher only observes it. It never signals,
// terminates or restarts a child.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/randomizedcoder/scenario-launcher/internal/drain"
	"github.com/randomizedcoder/scenario-launcher/internal/logging"
	"github.com/randomizedcoder/scenario-launcher/internal/process"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
	"github.com/randomizedcoder/scenario-launcher/internal/resultchan"
)

// Player modes.
const (
	ModePractice = "practice"
	ModeTest     = "test"
)

// outcomeStarted is the metrics outcome of a successful launch.
const outcomeStarted = "started"

// Default policy values.
const (
	DefaultGraceInterval = 2 * time.Second
	DefaultDrainTimeout  = 5 * time.Second
)

// Metrics receives launcher events.
type Metrics interface {
	LaunchAttempt(kind, outcome string)
	ChildStarted()
	ChildExited(exitCode int, lifetime time.Duration)
	LinesDropped(stream string, n int64)
	FailureLines(kind string, n int64)
}

type noopMetrics struct{}

func (noopMetrics) LaunchAttempt(string, string)   {}
func (noopMetrics) ChildStarted()                  {}
func (noopMetrics) ChildExited(int, time.Duration) {}
func (noopMetrics) LinesDropped(string, int64)     {}
func (noopMetrics) FailureLines(string, int64)     {}

// Config holds launcher dependencies and policy.
type Config struct {
	Resolver *resolver.Resolver

	// Runner builds commands; nil uses a DetachedRunner.
	Runner process.Runner

	// Results consumes the result file; nil creates one with Logger.
	Results *resultchan.Channel

	GraceInterval time.Duration
	DrainTimeout  time.Duration

	// Verbose forwards benign child output at debug level.
	Verbose bool

	// SkipDiagnostics disables the one-time installation check on the
	// first launch.
	SkipDiagnostics bool

	Logger  *slog.Logger
	Metrics Metrics
}

// Request describes one launch.
type Request struct {
	// ScenarioPath is optional for the editor and required for the player.
	ScenarioPath string

	// Mode is ModePractice or ModeTest. Empty means practice. Ignored for
	// the editor.
	Mode string
}

// Launcher starts children and tracks them until they exit.
type Launcher struct {
	resolver     *resolver.Resolver
	runner       process.Runner
	results      *resultchan.Channel
	grace        time.Duration
	drainTimeout time.Duration
	verbose      bool
	skipDiagnose bool
	logger       *slog.Logger
	metrics      Metrics
	diagnoseOnce sync.Once
	observers    sync.WaitGroup

	mu       sync.Mutex
	children []*Child
}

// New creates a launcher.
func New(cfg Config) *Launcher {
	l := &Launcher{
		resolver:     cfg.Resolver,
		runner:       cfg.Runner,
		results:      cfg.Results,
		grace:        cfg.GraceInterval,
		drainTimeout: cfg.DrainTimeout,
		verbose:      cfg.Verbose,
		skipDiagnose: cfg.SkipDiagnostics,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.runner == nil {
		l.runner = process.NewDetachedRunner()
	}
	if l.results == nil {
		l.results = resultchan.New(l.logger, nil)
	}
	if l.grace <= 0 {
		l.grace = DefaultGraceInterval
	}
	if l.drainTimeout <= 0 {
		l.drainTimeout = DefaultDrainTimeout
	}
	if l.metrics == nil {
		l.metrics = noopMetrics{}
	}
	return l
}

// =============================================================================
// Boolean API
// =============================================================================

// LaunchEditor starts the scenario editor. An empty or missing scenario path
// starts it blank. Returns true if the editor is running after the grace
// interval. Failures are logged, never returned.
func (l *Launcher) LaunchEditor(scenarioPath string) bool {
	_, err := l.Launch(resolver.Editor, Request{ScenarioPath: scenarioPath})
	return err == nil
}

// LaunchPlayer starts the scenario player for scenarioPath in mode.
// Returns true if the player is running after the grace interval.
func (l *Launcher) LaunchPlayer(scenarioPath, mode string) bool {
	_, err := l.Launch(resolver.Player, Request{ScenarioPath: scenarioPath, Mode: mode})
	return err == nil
}

// TryConsumeResult returns the result at path, deleting it, if one is ready.
func (l *Launcher) TryConsumeResult(path string) (resultchan.Record, bool) {
	return l.results.TryConsume(path)
}

// =============================================================================
// Detailed API
// =============================================================================

// Launch starts kind and returns the running child. Every failure is a
// *LaunchError, already logged and counted.
func (l *Launcher) Launch(kind resolver.Kind, req Request) (*Child, error) {
	child, err := l.launch(kind, req)
	if err != nil {
		code := CodeOf(err)
		l.metrics.LaunchAttempt(kind.String(), string(code))
		l.logger.Error("launch_failed",
			"target", kind.String(),
			"code", string(code),
			"error", err,
		)
		return nil, err
	}
	l.metrics.LaunchAttempt(kind.String(), outcomeStarted)
	return child, nil
}

func (l *Launcher) launch(kind resolver.Kind, req Request) (*Child, error) {
	// The runtime is checked once; the filesystem checks run on every launch.
	if !l.skipDiagnose {
		full := false
		l.diagnoseOnce.Do(func() {
			l.resolver.LogDiagnostics()
			full = true
		})
		if !full {
			l.resolver.LogPathDiagnostics()
		}
	}

	// Step 1: resolve
	target, err := l.resolver.Resolve(kind)
	if err != nil {
		return nil, &LaunchError{
			Code:    CodeMissingArtifact,
			Kind:    kind,
			Message: "primary artifact not found",
			Cause:   err,
		}
	}

	args, err := l.arguments(kind, req)
	if err != nil {
		return nil, err
	}

	// Step 2: build
	inv := l.resolver.Invocation(target, args...)
	cmd, err := l.runner.BuildCommand(inv)
	if err != nil {
		return nil, &LaunchError{
			Code:    CodeSpawnFailure,
			Kind:    kind,
			Message: "could not build command",
			Cause:   err,
		}
	}

	l.logger.Info("launch_started",
		"target", kind.String(),
		"mode", inv.Mode.Name(),
		"libs", len(target.AuxiliaryLibraryPaths),
		"command", inv.CommandString(),
	)

	// Step 3: spawn with both streams on pipes
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Code: CodeSpawnFailure, Kind: kind, Message: "stdout pipe", Cause: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &LaunchError{Code: CodeSpawnFailure, Kind: kind, Message: "stderr pipe", Cause: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, &LaunchError{
			Code:    CodeSpawnFailure,
			Kind:    kind,
			Message: fmt.Sprintf("could not start %s", inv.Executable),
			Cause:   err,
		}
	}

	// IMPORTANT: close the parent's write ends after Start so the readers
	// see EOF when the child (and anything it spawned) exits
	stdoutW.Close()
	stderrW.Close()

	child := newChild(kind, cmd.Process.Pid, inv.CommandString(), start)
	l.track(child)

	// Readers run from the start so the child never blocks on a full pipe
	stdoutHandler := logging.NewOutputHandler(kind.String(), "stdout", l.logger, l.verbose)
	stderrHandler := logging.NewOutputHandler(kind.String(), "stderr", l.logger, l.verbose)
	stdout := drain.NewStream("stdout", stdoutR, stdoutHandler, drain.DefaultBufferSize)
	stderr := drain.NewStream("stderr", stderrR, stderrHandler, drain.DefaultBufferSize)
	stdout.Start()
	stderr.Start()

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	// Step 4: grace interval, then a non-blocking liveness check
	time.Sleep(l.grace)

	select {
	case <-exited:
		// Step 5b: exited within the grace interval
		drain.WaitAll(l.drainTimeout, stdout, stderr)
		exitCode := process.ExitCode(waitErr)

		child.setState(StateFailed)
		child.setResult(process.Result{
			Target:    kind.String(),
			PID:       child.PID,
			ExitCode:  exitCode,
			StartTime: start,
			EndTime:   time.Now(),
			Error:     waitErr,
		})

		l.logger.Error("child_exited_immediately",
			"target", kind.String(),
			"pid", child.PID,
			"exit_code", exitCode,
			"stdout", stdoutHandler.Text(),
			"stderr", stderrHandler.Text(),
		)
		return nil, &LaunchError{
			Code:     CodeImmediateExit,
			Kind:     kind,
			Message:  fmt.Sprintf("exited within %s (exit code %d)", l.grace, exitCode),
			ExitCode: exitCode,
			Stdout:   stdoutHandler.Text(),
			Stderr:   stderrHandler.Text(),
		}

	default:
	}

	// Step 5a: running
	child.setState(StateRunning)
	l.metrics.ChildStarted()
	l.logger.Info("child_running",
		"target", kind.String(),
		"pid", child.PID,
	)

	l.observers.Add(1)
	go l.observe(child, exited, &waitErr, []*drain.Stream{stdout, stderr},
		[]*logging.OutputHandler{stdoutHandler, stderrHandler})

	return child, nil
}

// arguments validates the request and returns the program arguments.
func (l *Launcher) arguments(kind resolver.Kind, req Request) ([]string, error) {
	switch kind {
	case resolver.Player:
		if req.ScenarioPath == "" {
			return nil, &LaunchError{Code: CodeMissingScenario, Kind: kind, Message: "no scenario given"}
		}
		abs, err := filepath.Abs(req.ScenarioPath)
		if err != nil {
			return nil, &LaunchError{Code: CodeMissingScenario, Kind: kind, Message: req.ScenarioPath, Cause: err}
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, &LaunchError{Code: CodeMissingScenario, Kind: kind, Message: abs, Cause: err}
		}
		mode := req.Mode
		if mode == "" {
			mode = ModePractice
		}
		if mode != ModePractice && mode != ModeTest {
			return nil, &LaunchError{
				Code:    CodeInvalidRequest,
				Kind:    kind,
				Message: fmt.Sprintf("invalid mode %q: must be %q or %q", mode, ModePractice, ModeTest),
			}
		}
		return []string{abs, mode}, nil

	default:
		if req.ScenarioPath == "" {
			return nil, nil
		}
		abs, err := filepath.Abs(req.ScenarioPath)
		if err == nil {
			if _, err = os.Stat(abs); err == nil {
				return []string{abs}, nil
			}
		}
		l.logger.Warn("scenario_not_found_starting_blank",
			"target", kind.String(),
			"scenario", req.ScenarioPath,
		)
		return nil, nil
	}
}

// observe keeps draining a running child's output until it exits, then waits
// at most the drain timeout for the pipes to close. It reports only through
// the logger and metrics.
func (l *Launcher) observe(child *Child, exited <-chan struct{}, waitErr *error, streams []*drain.Stream, handlers []*logging.OutputHandler) {
	defer l.observers.Done()

	<-exited
	end := time.Now()

	if !drain.WaitAll(l.drainTimeout, streams...) {
		l.logger.Warn("output_drain_timeout",
			"target", child.Kind.String(),
			"pid", child.PID,
			"timeout", l.drainTimeout.String(),
		)
	}

	exitCode := process.ExitCode(*waitErr)
	result := process.Result{
		Target:    child.Kind.String(),
		PID:       child.PID,
		ExitCode:  exitCode,
		StartTime: child.StartTime,
		EndTime:   end,
		Error:     *waitErr,
	}
	child.setResult(result)
	child.setState(StateExited)

	var failures int64
	for _, h := range handlers {
		failures += h.Failures()
	}
	for _, s := range streams {
		_, dropped, _ := s.Pipeline().Stats()
		l.metrics.LinesDropped(s.Pipeline().Name(), dropped)
	}
	l.metrics.FailureLines(child.Kind.String(), failures)
	l.metrics.ChildExited(exitCode, result.Lifetime())

	l.logger.Info("child_exited",
		"target", child.Kind.String(),
		"pid", child.PID,
		"exit_code", exitCode,
		"lifetime", result.Lifetime().String(),
		"failure_lines", failures,
	)
}

func (l *Launcher) track(c *Child) {
	l.mu.Lock()
	l.children = append(l.children, c)
	l.mu.Unlock()
}

// Children returns every child launched so far.
func (l *Launcher) Children() []*Child {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Child(nil), l.children...)
}

// Running returns how many children are currently observed running.
func (l *Launcher) Running() int {
	n := 0
	for _, c := range l.Children() {
		if c.State() == StateRunning {
			n++
		}
	}
	return n
}

// Wait blocks until every running child has exited and its output drained,
// or ctx is done. It does not affect the children.
func (l *Launcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.observers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLaunchError reports whether err came from a failed launch.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}
