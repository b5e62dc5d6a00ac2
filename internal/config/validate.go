package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.InstallRoot) == "" {
		errs = append(errs, ValidationError{
			Field:   "install_root",
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(cfg.RuntimePath) == "" {
		errs = append(errs, ValidationError{
			Field:   "runtime_path",
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		errs = append(errs, ValidationError{
			Field:   "data_dir",
			Message: "must not be empty",
		})
	}

	if cfg.GraceInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_interval",
			Message: "must be positive",
		})
	}

	if cfg.DrainTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "drain_timeout",
			Message: "must be positive",
		})
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be positive",
		})
	}

	if cfg.MinTestScenarios < 1 {
		errs = append(errs, ValidationError{
			Field:   "min_test_scenarios",
			Message: "must be at least 1",
		})
	}
	if cfg.MaxTestScenarios < cfg.MinTestScenarios {
		errs = append(errs, ValidationError{
			Field:   "max_test_scenarios",
			Message: fmt.Sprintf("must be >= min_test_scenarios (%d)", cfg.MinTestScenarios),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if cfg.MetricsAddr != "" && !strings.Contains(cfg.MetricsAddr, ":") {
		errs = append(errs, ValidationError{
			Field:   "metrics_addr",
			Message: fmt.Sprintf("must be host:port (got %q)", cfg.MetricsAddr),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
