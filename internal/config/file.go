package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// fileConfig mirrors Config for TOML decoding. Pointers distinguish "unset"
// from zero values; durations are strings ("2s", "500ms").
type fileConfig struct {
	InstallRoot *string `toml:"install_root"`
	RuntimePath *string `toml:"runtime_path"`
	ModulePath  *string `toml:"module_path"`

	GraceInterval *string `toml:"grace_interval"`
	DrainTimeout  *string `toml:"drain_timeout"`

	DataDir      *string `toml:"data_dir"`
	ResultFile   *string `toml:"result_file"`
	ScenariosDir *string `toml:"scenarios_dir"`
	PollInterval *string `toml:"poll_interval"`

	MinTestScenarios *int `toml:"min_test_scenarios"`
	MaxTestScenarios *int `toml:"max_test_scenarios"`

	Verbose         *bool   `toml:"verbose"`
	LogFormat       *string `toml:"log_format"`
	MetricsAddr     *string `toml:"metrics_addr"`
	MetricsTextfile *string `toml:"metrics_textfile"`
	TUIEnabled      *bool   `toml:"tui"`
}

// LoadFile decodes a TOML file and applies every key it sets onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.InstallRoot, fc.InstallRoot)
	setString(&cfg.RuntimePath, fc.RuntimePath)
	setString(&cfg.ModulePath, fc.ModulePath)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.ResultFile, fc.ResultFile)
	setString(&cfg.ScenariosDir, fc.ScenariosDir)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.MetricsTextfile, fc.MetricsTextfile)

	if fc.MinTestScenarios != nil {
		cfg.MinTestScenarios = *fc.MinTestScenarios
	}
	if fc.MaxTestScenarios != nil {
		cfg.MaxTestScenarios = *fc.MaxTestScenarios
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if fc.TUIEnabled != nil {
		cfg.TUIEnabled = *fc.TUIEnabled
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"grace_interval", fc.GraceInterval, &cfg.GraceInterval},
		{"drain_timeout", fc.DrainTimeout, &cfg.DrainTimeout},
		{"poll_interval", fc.PollInterval, &cfg.PollInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return ValidationError{Field: d.key, Message: fmt.Sprintf("invalid duration %q", *d.src)}
		}
		*d.dst = v
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Load layers the configuration: defaults (already in cfg), then the TOML
// file named by cfg.ConfigFile, then any flag the user set explicitly.
// fs must be the flag set that was bound with BindFlags and already parsed.
func Load(fs *pflag.FlagSet, cfg *Config) error {
	if cfg.ConfigFile == "" {
		return nil
	}

	// Remember explicitly set flags; the file load overwrites their targets.
	changed := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := LoadFile(cfg.ConfigFile, cfg); err != nil {
		return err
	}

	for name, value := range changed {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("reapply flag --%s: %w", name, err)
		}
	}
	return nil
}
