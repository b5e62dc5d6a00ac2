// Package metrics provides Prometheus metrics for scenario-launcher.
//
// Metrics are grouped by the component that records them:
//   - Launcher: launch attempts, running children, child lifetime
//   - Result channel: consumed records and parse failures
//   - Store: repaired documents
//   - Sessions: completed tests and their scores
//
// Every Collector owns its registry, so a CLI run and each test see only
// their own values.
package metrics

import (
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Launch outcomes used as the "outcome" label.
const (
	OutcomeStarted         = "started"
	OutcomeMissingArtifact = "missing_artifact"
	OutcomeMissingScenario = "missing_scenario"
	OutcomeSpawnFailure    = "spawn_failure"
	OutcomeImmediateExit   = "immediate_exit"
)

// Collector manages all Prometheus metrics for the launcher.
type Collector struct {
	registry *prometheus.Registry

	// --- Launcher ---
	info                 *prometheus.GaugeVec
	launchesTotal        *prometheus.CounterVec
	runningChildren      prometheus.Gauge
	childExitsTotal      *prometheus.CounterVec
	childLifetimeSeconds prometheus.Histogram
	linesDroppedTotal    *prometheus.CounterVec
	failureLinesTotal    *prometheus.CounterVec

	// --- Result channel ---
	resultsConsumedTotal      prometheus.Counter
	resultParseFailuresTotal  prometheus.Counter
	resultSchemaMismatchTotal prometheus.Counter

	// --- Store ---
	documentsRepairedTotal *prometheus.CounterVec

	// --- Sessions ---
	testsCompletedTotal prometheus.Counter
	testScore           prometheus.Histogram

	// For summary generation
	mu          sync.Mutex
	startTime   time.Time
	running     int
	peakRunning int
	launches    map[string]int64
	exitCodes   map[int]int64
	lifetimes   []time.Duration
}

// NewCollector creates a collector with its own registry. The registry also
// carries the Go runtime and process collectors.
func NewCollector(version string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollectorWithRegistry(version, registry)
}

// NewCollectorWithRegistry creates a collector that registers into registry.
// Useful for testing.
func NewCollectorWithRegistry(version string, registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry:  registry,
		startTime: time.Now(),
		launches:  make(map[string]int64),
		exitCodes: make(map[int]int64),
	}

	c.info = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scenario_launcher_info",
			Help: "Information about the launcher (value always 1)",
		},
		[]string{"version"},
	)
	c.launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_launcher_launches_total",
			Help: "Launch attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	c.runningChildren = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenario_launcher_running_children",
			Help: "Launched children still observed running",
		},
	)
	c.childExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_launcher_child_exits_total",
			Help: "Observed child exits by category",
		},
		[]string{"category"},
	)
	c.childLifetimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scenario_launcher_child_lifetime_seconds",
			Help:    "How long launched children ran",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	c.linesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_launcher_output_lines_dropped_total",
			Help: "Child output lines dropped because the parser fell behind",
		},
		[]string{"stream"},
	)
	c.failureLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_launcher_output_failure_lines_total",
			Help: "Child output lines that matched a failure pattern",
		},
		[]string{"kind"},
	)
	c.resultsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scenario_launcher_results_consumed_total",
			Help: "Result records consumed from the result channel",
		},
	)
	c.resultParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scenario_launcher_result_parse_failures_total",
			Help: "Polls that found an unparsable result file",
		},
	)
	c.resultSchemaMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scenario_launcher_result_schema_mismatch_total",
			Help: "Consumed records without a boolean correct field",
		},
	)
	c.documentsRepairedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_launcher_documents_repaired_total",
			Help: "Documents replaced with their default because they were missing, empty or corrupt",
		},
		[]string{"category"},
	)
	c.testsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scenario_launcher_tests_completed_total",
			Help: "Completed test sessions",
		},
	)
	c.testScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scenario_launcher_test_score",
			Help:    "Scores of completed test sessions",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	registry.MustRegister(
		c.info,
		c.launchesTotal,
		c.runningChildren,
		c.childExitsTotal,
		c.childLifetimeSeconds,
		c.linesDroppedTotal,
		c.failureLinesTotal,
		c.resultsConsumedTotal,
		c.resultParseFailuresTotal,
		c.resultSchemaMismatchTotal,
		c.documentsRepairedTotal,
		c.testsCompletedTotal,
		c.testScore,
	)

	c.info.WithLabelValues(version).Set(1)
	return c
}

// Registry returns the registry the collector registered into.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// Launcher
// =============================================================================

// LaunchAttempt records one launch attempt and its outcome.
func (c *Collector) LaunchAttempt(kind, outcome string) {
	c.launchesTotal.WithLabelValues(kind, outcome).Inc()

	c.mu.Lock()
	c.launches[outcome]++
	c.mu.Unlock()
}

// ChildStarted records a child that survived its grace interval.
func (c *Collector) ChildStarted() {
	c.runningChildren.Inc()

	c.mu.Lock()
	c.running++
	if c.running > c.peakRunning {
		c.peakRunning = c.running
	}
	c.mu.Unlock()
}

// ChildExited records the exit of a child previously passed to ChildStarted.
func (c *Collector) ChildExited(exitCode int, lifetime time.Duration) {
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 || exitCode == -1 {
		category = "signal"
	}
	c.childExitsTotal.WithLabelValues(category).Inc()
	c.childLifetimeSeconds.Observe(lifetime.Seconds())
	c.runningChildren.Dec()

	c.mu.Lock()
	c.running--
	c.exitCodes[exitCode]++
	c.lifetimes = append(c.lifetimes, lifetime)
	c.mu.Unlock()
}

// LinesDropped records output lines dropped on a stream.
func (c *Collector) LinesDropped(stream string, n int64) {
	if n > 0 {
		c.linesDroppedTotal.WithLabelValues(stream).Add(float64(n))
	}
}

// FailureLines records output lines that matched a failure pattern.
func (c *Collector) FailureLines(kind string, n int64) {
	if n > 0 {
		c.failureLinesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// =============================================================================
// Result channel
// =============================================================================

// ResultConsumed records a delivered result record.
func (c *Collector) ResultConsumed() {
	c.resultsConsumedTotal.Inc()
}

// ResultParseFailed records a poll that found an unparsable file.
func (c *Collector) ResultParseFailed() {
	c.resultParseFailuresTotal.Inc()
}

// ResultSchemaMismatch records a delivered record with an unexpected shape.
func (c *Collector) ResultSchemaMismatch() {
	c.resultSchemaMismatchTotal.Inc()
}

// =============================================================================
// Store and sessions
// =============================================================================

// DocumentRepaired records a document replaced with its category default.
func (c *Collector) DocumentRepaired(category string) {
	c.documentsRepairedTotal.WithLabelValues(category).Inc()
}

// TestCompleted records a finished test session.
func (c *Collector) TestCompleted(score int) {
	c.testsCompletedTotal.Inc()
	c.testScore.Observe(float64(score))
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for an exit summary.
type Summary struct {
	Duration    time.Duration
	Launches    map[string]int64 // by outcome
	PeakRunning int
	ExitCodes   map[int]int64
	LifetimeP50 time.Duration
	LifetimeP95 time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:    time.Since(c.startTime),
		Launches:    make(map[string]int64, len(c.launches)),
		PeakRunning: c.peakRunning,
		ExitCodes:   make(map[int]int64, len(c.exitCodes)),
	}
	for k, v := range c.launches {
		s.Launches[k] = v
	}
	for k, v := range c.exitCodes {
		s.ExitCodes[k] = v
	}

	if len(c.lifetimes) > 0 {
		sorted := slices.Clone(c.lifetimes)
		slices.Sort(sorted)
		s.LifetimeP50 = percentile(sorted, 0.50)
		s.LifetimeP95 = percentile(sorted, 0.95)
	}
	return s
}

// PeakRunning returns the most children observed running at once.
func (c *Collector) PeakRunning() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakRunning
}

// percentile returns the value at the given percentile (0.0-1.0).
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
