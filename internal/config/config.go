// Package config provides configuration management for scenario-launcher.
package config

import (
	"path/filepath"
	"time"
)

// Config holds all configuration options for the launcher and its sessions.
type Config struct {
	// Installation
	InstallRoot string `json:"install_root"` // directory containing build/
	RuntimePath string `json:"runtime_path"` // java executable
	ModulePath  string `json:"module_path"`  // JavaFX lib directory, empty = no module flags

	// Launch policy
	GraceInterval time.Duration `json:"grace_interval"`
	DrainTimeout  time.Duration `json:"drain_timeout"`

	// Data documents
	DataDir      string        `json:"data_dir"`
	ResultFile   string        `json:"result_file"`   // empty = <data_dir>/temp_result.json
	ScenariosDir string        `json:"scenarios_dir"` // empty = <data_dir>/scenarios
	PollInterval time.Duration `json:"poll_interval"`

	// Test sessions
	MinTestScenarios int `json:"min_test_scenarios"`
	MaxTestScenarios int `json:"max_test_scenarios"`

	// Observability
	Verbose         bool   `json:"verbose"`
	LogFormat       string `json:"log_format"`       // json, text
	MetricsAddr     string `json:"metrics_addr"`     // empty = disabled
	MetricsTextfile string `json:"metrics_textfile"` // empty = disabled
	TUIEnabled      bool   `json:"tui"`

	// ConfigFile is the optional TOML file layered under the flags.
	ConfigFile string `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Installation
		InstallRoot: "java_app",
		RuntimePath: "java",
		ModulePath:  "",

		// Launch policy
		GraceInterval: 2 * time.Second,
		DrainTimeout:  5 * time.Second,

		// Data
		DataDir:      "data",
		PollInterval: 1 * time.Second,

		// Test sessions
		MinTestScenarios: 3,
		MaxTestScenarios: 4,

		// Observability
		Verbose:   false,
		LogFormat: "json",
	}
}

// ResultPath returns the result channel file path.
func (c *Config) ResultPath() string {
	if c.ResultFile != "" {
		return c.ResultFile
	}
	return filepath.Join(c.DataDir, "temp_result.json")
}

// ScenariosPath returns the directory holding scenario documents.
func (c *Config) ScenariosPath() string {
	if c.ScenariosDir != "" {
		return c.ScenariosDir
	}
	return filepath.Join(c.DataDir, "scenarios")
}

// SettingsPath returns the settings document path.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// CoursesPath returns the course list document path.
func (c *Config) CoursesPath() string {
	return filepath.Join(c.DataDir, "courses.json")
}

// HistoryPath returns the history list document path.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.json")
}
