package launcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/scenario-launcher/internal/process"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
	"github.com/randomizedcoder/scenario-launcher/internal/resultchan"
)

// =============================================================================
// Test Helpers
// =============================================================================

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// spyMetrics records launcher events.
type spyMetrics struct {
	mu       sync.Mutex
	outcomes []string
	started  int
	exited   []int
	failures int64
}

func (m *spyMetrics) LaunchAttempt(kind, outcome string) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, kind+":"+outcome)
	m.mu.Unlock()
}

func (m *spyMetrics) ChildStarted() {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *spyMetrics) ChildExited(code int, _ time.Duration) {
	m.mu.Lock()
	m.exited = append(m.exited, code)
	m.mu.Unlock()
}

func (m *spyMetrics) LinesDropped(string, int64) {}

func (m *spyMetrics) FailureLines(_ string, n int64) {
	m.mu.Lock()
	m.failures += n
	m.mu.Unlock()
}

// countingRunner counts BuildCommand calls.
type countingRunner struct {
	inner process.Runner
	mu    sync.Mutex
	calls int
}

func (r *countingRunner) Name() string { return "counting" }

func (r *countingRunner) BuildCommand(inv *process.Invocation) (*exec.Cmd, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.inner.BuildCommand(inv)
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fixture struct {
	root     string
	argsFile string
	runner   *countingRunner
	metrics  *spyMetrics
	logs     *syncBuffer
	launcher *Launcher
}

// newFixture creates an installation root with the given artifacts and a
// fake java runtime. The runtime answers -version, records its arguments
// one per line, then runs body.
func newFixture(t *testing.T, body string, artifacts ...string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake runtime requires a Unix shell")
	}

	dir := t.TempDir()
	root := filepath.Join(dir, "java_app")
	for _, a := range artifacts {
		path := filepath.Join(root, "build", a)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("PK"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	argsFile := filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"-version\" ]; then echo 'openjdk version \"17.0.9\"' >&2; exit 0; fi\n" +
		"printf '%s\\n' \"$@\" > " + argsFile + "\n" +
		body + "\n"
	javaPath := filepath.Join(dir, "java")
	if err := os.WriteFile(javaPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &spyMetrics{}
	runner := &countingRunner{inner: process.NewDetachedRunner()}

	res := resolver.New(root, &process.JavaConfig{RuntimePath: javaPath}, logger)
	l := New(Config{
		Resolver:      res,
		Runner:        runner,
		Results:       resultchan.New(logger, nil),
		GraceInterval: 200 * time.Millisecond,
		DrainTimeout:  2 * time.Second,
		Logger:        logger,
		Metrics:       metrics,
	})

	return &fixture{
		root:     root,
		argsFile: argsFile,
		runner:   runner,
		metrics:  metrics,
		logs:     logs,
		launcher: l,
	}
}

// recordedArgs returns the arguments the fake runtime was started with.
func (f *fixture) recordedArgs(t *testing.T) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(f.argsFile)
		if err == nil && len(data) > 0 {
			return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		}
		if time.Now().After(deadline) {
			t.Fatalf("runtime never recorded its arguments: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.launcher.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
}

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ambush.json")
	if err := os.WriteFile(path, []byte(`{"title":"Ambush"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// Failure paths
// =============================================================================

func TestLaunch_MissingArtifactSpawnsNothing(t *testing.T) {
	for _, kind := range resolver.Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t, "sleep 1")

			var ok bool
			if kind == resolver.Editor {
				ok = f.launcher.LaunchEditor("")
			} else {
				ok = f.launcher.LaunchPlayer(writeScenario(t), ModeTest)
			}
			if ok {
				t.Fatal("launch should fail without the primary artifact")
			}
			if f.runner.Calls() != 0 {
				t.Errorf("BuildCommand called %d times, want 0", f.runner.Calls())
			}
			if _, err := os.Stat(f.argsFile); !os.IsNotExist(err) {
				t.Error("a process was spawned")
			}
			if len(f.launcher.Children()) != 0 {
				t.Error("no child should be tracked")
			}
		})
	}
}

func TestLaunch_MissingArtifactError(t *testing.T) {
	f := newFixture(t, "sleep 1")

	_, err := f.launcher.Launch(resolver.Player, Request{ScenarioPath: writeScenario(t)})
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("err = %v, want ErrMissingArtifact", err)
	}
	if CodeOf(err) != CodeMissingArtifact {
		t.Errorf("CodeOf() = %q", CodeOf(err))
	}
	if !IsLaunchError(err) {
		t.Error("IsLaunchError() = false")
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != "player:missing_artifact" {
		t.Errorf("outcomes = %v", got)
	}
}

func TestLaunch_MissingScenario(t *testing.T) {
	f := newFixture(t, "sleep 1", "scenario_player.jar")

	for _, path := range []string{"", filepath.Join(t.TempDir(), "nope.json")} {
		_, err := f.launcher.Launch(resolver.Player, Request{ScenarioPath: path, Mode: ModeTest})
		if !errors.Is(err, ErrMissingScenario) {
			t.Errorf("Launch(%q) err = %v, want ErrMissingScenario", path, err)
		}
	}
	if f.runner.Calls() != 0 {
		t.Error("no command should be built for a missing scenario")
	}
}

func TestLaunch_InvalidMode(t *testing.T) {
	f := newFixture(t, "sleep 1", "scenario_player.jar")

	_, err := f.launcher.Launch(resolver.Player, Request{ScenarioPath: writeScenario(t), Mode: "exam"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if CodeOf(err) != CodeInvalidRequest {
		t.Errorf("CodeOf() = %q, want %q", CodeOf(err), CodeInvalidRequest)
	}
	if f.runner.Calls() != 0 {
		t.Error("no command should be built for an invalid mode")
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != "player:invalid_request" {
		t.Errorf("outcomes = %v", got)
	}
}

func TestLaunch_SpawnFailure(t *testing.T) {
	f := newFixture(t, "sleep 1", "scenario_editor.jar")

	res := resolver.New(f.root, &process.JavaConfig{RuntimePath: "/nonexistent/bin/java"}, slog.New(slog.NewTextHandler(f.logs, nil)))
	l := New(Config{
		Resolver:        res,
		GraceInterval:   50 * time.Millisecond,
		SkipDiagnostics: true,
		Logger:          slog.New(slog.NewTextHandler(f.logs, nil)),
	})

	_, err := l.Launch(resolver.Editor, Request{})
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("err = %v, want ErrSpawnFailure", err)
	}
	if !strings.Contains(f.logs.String(), "launch_failed") {
		t.Error("spawn failure should be logged")
	}
}

func TestLaunch_ImmediateExit(t *testing.T) {
	f := newFixture(t, "echo 'loading'; echo 'Exception in Application start method' >&2; exit 3", "scenario_player.jar")

	start := time.Now()
	_, err := f.launcher.Launch(resolver.Player, Request{ScenarioPath: writeScenario(t), Mode: ModePractice})
	if !errors.Is(err, ErrImmediateExit) {
		t.Fatalf("err = %v, want ErrImmediateExit", err)
	}
	if time.Since(start) < 200*time.Millisecond {
		t.Error("liveness must be checked only after the grace interval")
	}

	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatal("expected *LaunchError")
	}
	if le.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", le.ExitCode)
	}
	if !strings.Contains(le.Stderr, "Exception in Application start method") {
		t.Errorf("Stderr = %q", le.Stderr)
	}
	if !strings.Contains(le.Stdout, "loading") {
		t.Errorf("Stdout = %q", le.Stdout)
	}

	children := f.launcher.Children()
	if len(children) != 1 || children[0].State() != StateFailed {
		t.Errorf("child state = %v", children)
	}
	if f.metrics.started != 0 {
		t.Error("an immediate exit is not a started child")
	}
	if !strings.Contains(f.logs.String(), "child_exited_immediately") {
		t.Error("immediate exit should be logged")
	}
}

// =============================================================================
// Success paths
// =============================================================================

func TestLaunchPlayer_RunningDirectArtifact(t *testing.T) {
	f := newFixture(t,
		"echo 'Scenario loaded'; echo 'WARNING: Unsupported JavaFX configuration' >&2; echo 'java.lang.IllegalStateException: late' >&2; sleep 1",
		"scenario_player.jar")
	scenario := writeScenario(t)

	start := time.Now()
	if !f.launcher.LaunchPlayer(scenario, ModeTest) {
		t.Fatalf("LaunchPlayer() = false, logs:\n%s", f.logs.String())
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("LaunchPlayer waited %v; it must not wait for the child", elapsed)
	}

	args := f.recordedArgs(t)
	want := []string{"-jar", filepath.Join(f.root, "build", "scenario_player.jar"), scenario, "test"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", args, want)
	}

	if f.launcher.Running() != 1 {
		t.Errorf("Running() = %d, want 1", f.launcher.Running())
	}

	f.wait(t)

	child := f.launcher.Children()[0]
	if child.State() != StateExited {
		t.Errorf("State() = %v, want exited", child.State())
	}
	result, ok := child.Result()
	if !ok || result.ExitCode != 0 {
		t.Errorf("Result() = %+v, %v", result, ok)
	}

	logs := f.logs.String()
	if !strings.Contains(logs, "IllegalStateException") {
		t.Error("failure line should be forwarded")
	}
	if strings.Contains(logs, "Unsupported JavaFX") {
		t.Error("benign warning should not be forwarded")
	}
	if f.metrics.started != 1 || len(f.metrics.exited) != 1 || f.metrics.failures != 1 {
		t.Errorf("metrics = started %d, exited %v, failures %d", f.metrics.started, f.metrics.exited, f.metrics.failures)
	}
}

func TestLaunchPlayer_ClasspathMode(t *testing.T) {
	f := newFixture(t, "sleep 1",
		"scenario_player.jar",
		"libs/jackson-core.jar",
		"libs/jackson-databind.jar",
	)
	scenario := writeScenario(t)

	if !f.launcher.LaunchPlayer(scenario, ModeTest) {
		t.Fatalf("LaunchPlayer() = false, logs:\n%s", f.logs.String())
	}
	args := f.recordedArgs(t)
	f.wait(t)

	if len(args) != 5 {
		t.Fatalf("args = %v, want 5", args)
	}
	if args[0] != "-cp" {
		t.Errorf("args[0] = %q, want -cp", args[0])
	}
	entries := strings.Split(args[1], ":")
	if len(entries) != 3 || filepath.Base(entries[0]) != "scenario_player.jar" {
		t.Errorf("classpath = %q", args[1])
	}
	if args[2] != "ScenarioPlayer" || args[3] != scenario || args[4] != "test" {
		t.Errorf("args = %v", args)
	}
}

func TestLaunchEditor_Arguments(t *testing.T) {
	t.Run("blank", func(t *testing.T) {
		f := newFixture(t, "sleep 1", "scenario_editor.jar")
		if !f.launcher.LaunchEditor("") {
			t.Fatal("LaunchEditor() = false")
		}
		args := f.recordedArgs(t)
		f.wait(t)
		if len(args) != 2 || args[0] != "-jar" {
			t.Errorf("args = %v, want -jar <artifact>", args)
		}
	})

	t.Run("missing_scenario_starts_blank", func(t *testing.T) {
		f := newFixture(t, "sleep 1", "scenario_editor.jar")
		if !f.launcher.LaunchEditor(filepath.Join(t.TempDir(), "new.json")) {
			t.Fatal("LaunchEditor() = false")
		}
		args := f.recordedArgs(t)
		f.wait(t)
		if len(args) != 2 {
			t.Errorf("args = %v, want no scenario argument", args)
		}
		if !strings.Contains(f.logs.String(), "scenario_not_found_starting_blank") {
			t.Error("missing scenario should be logged")
		}
	})

	t.Run("existing_scenario", func(t *testing.T) {
		f := newFixture(t, "sleep 1", "scenario_editor.jar")
		scenario := writeScenario(t)
		if !f.launcher.LaunchEditor(scenario) {
			t.Fatal("LaunchEditor() = false")
		}
		args := f.recordedArgs(t)
		f.wait(t)
		if args[len(args)-1] != scenario {
			t.Errorf("args = %v, want scenario last", args)
		}
	})
}

func TestLaunch_Diagnostics(t *testing.T) {
	f := newFixture(t, "exit 0", "scenario_editor.jar")

	f.launcher.LaunchEditor("")
	f.launcher.LaunchEditor("")

	// The runtime is checked on the first launch only
	if got := strings.Count(f.logs.String(), "17.0.9"); got != 1 {
		t.Errorf("runtime checked %d times, want 1", got)
	}
	if got := strings.Count(f.logs.String(), "check=build_dir"); got != 2 {
		t.Errorf("build_dir checked %d times, want 2", got)
	}
}

func TestLaunch_PathDiagnosticsSeeLaterBuilds(t *testing.T) {
	f := newFixture(t, "exit 0", "scenario_editor.jar")
	missing := func(logs string) bool {
		for _, line := range strings.Split(logs, "\n") {
			if strings.Contains(line, "preflight_failed") && strings.Contains(line, "check=scenario_player") {
				return true
			}
		}
		return false
	}

	f.launcher.LaunchEditor("")
	first := f.logs.String()
	if !missing(first) {
		t.Fatalf("first launch should report the missing player archive:\n%s", first)
	}

	player := filepath.Join(f.root, "build", "scenario_player.jar")
	if err := os.WriteFile(player, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.launcher.LaunchEditor("")

	if later := strings.TrimPrefix(f.logs.String(), first); missing(later) {
		t.Errorf("player archive still reported missing after it was built:\n%s", later)
	}
}

func TestTryConsumeResult(t *testing.T) {
	f := newFixture(t, "sleep 1")
	path := filepath.Join(t.TempDir(), "temp_result.json")

	if _, ok := f.launcher.TryConsumeResult(path); ok {
		t.Error("no result expected yet")
	}
	if err := resultchan.Publish(path, map[string]any{"correct": true}); err != nil {
		t.Fatal(err)
	}
	rec, ok := f.launcher.TryConsumeResult(path)
	if !ok {
		t.Fatal("result expected")
	}
	if c, _ := rec.Correct(); !c {
		t.Errorf("record = %v", rec)
	}
}

func TestWait_ContextDone(t *testing.T) {
	f := newFixture(t, "sleep 2", "scenario_editor.jar")
	if !f.launcher.LaunchEditor("") {
		t.Fatal("LaunchEditor() = false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := f.launcher.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
	f.wait(t)
}

// =============================================================================
// Errors and state
// =============================================================================

func TestLaunchError(t *testing.T) {
	cause := errors.New("exec: not found")
	err := &LaunchError{Code: CodeSpawnFailure, Kind: resolver.Editor, Message: "could not start java", Cause: cause}

	if !errors.Is(err, ErrSpawnFailure) {
		t.Error("errors.Is(ErrSpawnFailure) = false")
	}
	if errors.Is(err, ErrImmediateExit) {
		t.Error("errors.Is(ErrImmediateExit) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be unwrapped")
	}
	want := "launch editor: spawn_failure: could not start java: exec: not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain error) should be empty")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateStarting, "starting", false},
		{StateRunning, "running", false},
		{StateExited, "exited", true},
		{StateFailed, "failed", true},
		{State(42), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if tt.state.String() != tt.want {
				t.Errorf("String() = %q", tt.state.String())
			}
			if tt.state.IsTerminal() != tt.terminal {
				t.Errorf("IsTerminal() = %v", tt.state.IsTerminal())
			}
		})
	}
}
