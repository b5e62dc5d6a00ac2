// Package orchestrator wires the launcher, store, sessions and observability
// together for the command line.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/scenario-launcher/internal/config"
	"github.com/randomizedcoder/scenario-launcher/internal/launcher"
	"github.com/randomizedcoder/scenario-launcher/internal/metrics"
	"github.com/randomizedcoder/scenario-launcher/internal/process"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
	"github.com/randomizedcoder/scenario-launcher/internal/resultchan"
	"github.com/randomizedcoder/scenario-launcher/internal/session"
	"github.com/randomizedcoder/scenario-launcher/internal/stats"
	"github.com/randomizedcoder/scenario-launcher/internal/store"
	"github.com/randomizedcoder/scenario-launcher/internal/tui"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 10 * time.Second

// Orchestrator owns every long-lived component of one command invocation.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	out    io.Writer

	metrics       *metrics.Collector
	metricsServer *metrics.Server
	store         *store.Store
	resolver      *resolver.Resolver
	results       *resultchan.Channel
	launcher      *launcher.Launcher
}

// New builds the component graph from cfg. Nothing is started.
func New(cfg *config.Config, logger *slog.Logger, version string, out io.Writer) *Orchestrator {
	collector := metrics.NewCollector(version)

	java := &process.JavaConfig{
		RuntimePath: cfg.RuntimePath,
		ModulePath:  cfg.ModulePath,
	}
	res := resolver.New(cfg.InstallRoot, java, logger)
	results := resultchan.New(logger, collector)

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		out:      out,
		metrics:  collector,
		resolver: res,
		results:  results,
		store: store.New(store.Paths{
			Settings:  cfg.SettingsPath(),
			Courses:   cfg.CoursesPath(),
			History:   cfg.HistoryPath(),
			Scenarios: cfg.ScenariosPath(),
		}, logger, collector),
		launcher: launcher.New(launcher.Config{
			Resolver:      res,
			Results:       results,
			GraceInterval: cfg.GraceInterval,
			DrainTimeout:  cfg.DrainTimeout,
			Verbose:       cfg.Verbose,
			Logger:        logger,
			Metrics:       collector,
		}),
	}

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, collector.Registry(), logger)
	}
	return o
}

// Store returns the document store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// Resolver returns the artifact resolver.
func (o *Orchestrator) Resolver() *resolver.Resolver {
	return o.resolver
}

// Launcher returns the process launcher.
func (o *Orchestrator) Launcher() *launcher.Launcher {
	return o.launcher
}

// Metrics returns the metrics collector.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// Results returns the result channel consumer.
func (o *Orchestrator) Results() *resultchan.Channel {
	return o.results
}

func (o *Orchestrator) Config() *config.Config {
	return o.config
}

// Start starts the metrics server if one is configured.
func (o *Orchestrator) Start() error {
	if o.metricsServer == nil {
		return nil
	}
	if err := o.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Close stops the metrics server and writes the metrics textfile if one is
// configured. Children are left running.
func (o *Orchestrator) Close() error {
	var errs []error

	if o.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
			errs = append(errs, err)
		}
	}

	if o.config.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(o.config.MetricsTextfile, o.metrics.Registry()); err != nil {
			o.logger.Warn("metrics_textfile_failed", "path", o.config.MetricsTextfile, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// Sessions
// =============================================================================

// NewSessionRunner builds a session runner bound to this orchestrator's
// launcher, history and result file.
func (o *Orchestrator) NewSessionRunner(onProgress func(session.Progress)) *session.Runner {
	return session.New(session.Config{
		Launcher:     o.launcher,
		History:      o.store,
		ResultPath:   o.config.ResultPath(),
		PollInterval: o.config.PollInterval,
		MinScenarios: o.config.MinTestScenarios,
		MaxScenarios: o.config.MaxTestScenarios,
		OnProgress:   onProgress,
		Logger:       o.logger,
		Metrics:      o.metrics,
	})
}

// AvailableScenarios returns the paths of every scenario in the scenarios
// directory.
func (o *Orchestrator) AvailableScenarios() ([]string, error) {
	infos, err := o.store.ListScenarios(o.config.ScenariosPath())
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	return paths, nil
}

// RunTest runs a test session for user. With the dashboard enabled the TUI
// owns the terminal until the user quits; otherwise progress is logged.
func (o *Orchestrator) RunTest(ctx context.Context, user session.User) (store.HistoryRecord, error) {
	scenarios, err := o.AvailableScenarios()
	if err != nil {
		return store.HistoryRecord{}, err
	}

	if !o.config.TUIEnabled {
		runner := o.NewSessionRunner(func(p session.Progress) {
			o.logger.Info("test_progress",
				"scenario", p.Scenario,
				"index", p.Index+1,
				"total", p.Total,
				"phase", p.Phase.String(),
			)
		})
		return runner.Test(ctx, user, scenarios)
	}

	return o.runTestWithTUI(ctx, user, scenarios)
}

func (o *Orchestrator) runTestWithTUI(ctx context.Context, user session.User, scenarios []string) (store.HistoryRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(tui.Config{
		UserName:    user.Name,
		MetricsAddr: o.config.MetricsAddr,
		Children:    o.launcher,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	type outcome struct {
		rec store.HistoryRecord
		err error
	}
	done := make(chan outcome, 1)

	runner := o.NewSessionRunner(func(pr session.Progress) { tui.SendProgress(p, pr) })
	go func() {
		rec, err := runner.Test(ctx, user, scenarios)
		tui.SendResult(p, rec, err)
		done <- outcome{rec, err}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		o.logger.Warn("tui_error", "error", err)
	}

	// Quitting the dashboard abandons a test still in progress
	cancel()
	res := <-done
	return res.rec, res.err
}

// =============================================================================
// Summary
// =============================================================================

// PrintExitSummary prints the run summary, including the recorded history.
func (o *Orchestrator) PrintExitSummary() {
	summary := o.metrics.GenerateSummary()

	var history *stats.HistorySummary
	if records, err := o.store.History(); err == nil && len(records) > 0 {
		h := stats.SummarizeHistory(records)
		history = &h
	}

	fmt.Fprint(o.out, stats.FormatExitSummary(history, stats.SummaryConfig{
		Duration:    summary.Duration,
		MetricsAddr: o.config.MetricsAddr,
		Launches:    summary.Launches,
		PeakRunning: summary.PeakRunning,
		ExitCodes:   summary.ExitCodes,
		LifetimeP50: summary.LifetimeP50,
		LifetimeP95: summary.LifetimeP95,
	}))
}
