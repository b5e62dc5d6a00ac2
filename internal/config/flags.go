package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers every configuration flag on fs, using the current
// values of cfg as defaults. Intended for a command's persistent flag set.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML configuration file (flags override it)")

	// Installation
	fs.StringVar(&cfg.InstallRoot, "install-root", cfg.InstallRoot, "Directory containing build/ with the scenario archives")
	fs.StringVar(&cfg.RuntimePath, "runtime", cfg.RuntimePath, "Java runtime command")
	fs.StringVar(&cfg.ModulePath, "module-path", cfg.ModulePath, "JavaFX module directory (empty disables --module-path/--add-modules)")

	// Launch policy
	fs.DurationVar(&cfg.GraceInterval, "grace", cfg.GraceInterval, "Delay after spawn before the liveness check")
	fs.DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "How long to wait for child output after it exits")

	// Data
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding config, course and history documents")
	fs.StringVar(&cfg.ResultFile, "result-file", cfg.ResultFile, "Result channel file (default <data-dir>/temp_result.json)")
	fs.StringVar(&cfg.ScenariosDir, "scenarios-dir", cfg.ScenariosDir, "Scenario directory (default <data-dir>/scenarios)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Result channel poll interval")

	// Test sessions
	fs.IntVar(&cfg.MinTestScenarios, "min-scenarios", cfg.MinTestScenarios, "Minimum scenarios per test")
	fs.IntVar(&cfg.MaxTestScenarios, "max-scenarios", cfg.MaxTestScenarios, "Maximum scenarios per test")

	// Observability
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write a metrics snapshot to this file on exit")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show the live test dashboard")
}
