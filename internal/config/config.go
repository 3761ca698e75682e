// Package config handles TOML configuration for Warden.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	AWS     AWSConfig     `toml:"aws"`
	Audit   AuditConfig   `toml:"audit"`
	Output  OutputConfig  `toml:"output"`
	Storage StorageConfig `toml:"storage"`
	Serve   ServeConfig   `toml:"serve"`
	OTEL    OTELConfig    `toml:"otel"`
	Log     LogConfig     `toml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Regions []string `toml:"regions"` // empty means every enabled region
	Profile string   `toml:"profile"`
}

// AuditConfig selects what is audited and how hard AWS is hit.
type AuditConfig struct {
	Resources      []string      `toml:"resources"` // ARN glob allow-list
	Kinds          []string      `toml:"kinds"`
	Checks         []string      `toml:"checks"`
	ExcludeChecks  []string      `toml:"exclude_checks"`
	CustomChecks   string        `toml:"custom_checks"`
	MaxWorkers     int           `toml:"max_workers"`
	CheckWorkers   int           `toml:"check_workers"`
	CallTimeoutStr string        `toml:"call_timeout"`
	CallTimeout    time.Duration `toml:"-"`
}

// OutputConfig holds finding output settings.
type OutputConfig struct {
	Format string `toml:"format"` // json or none
	Path   string `toml:"path"`   // empty means stdout
}

// StorageConfig holds audit history settings.
type StorageConfig struct {
	Path     string `toml:"path"`      // empty disables history
	KeepRuns int    `toml:"keep_runs"` // 0 keeps every run
}

// ServeConfig holds settings for repeated audits.
type ServeConfig struct {
	IntervalStr string        `toml:"interval"`
	Interval    time.Duration `toml:"-"`
	MetricsAddr string        `toml:"metrics_addr"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseDurations(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "warden"
	}
	if cfg.Audit.MaxWorkers == 0 {
		cfg.Audit.MaxWorkers = 8
	}
	if cfg.Audit.CallTimeoutStr == "" {
		cfg.Audit.CallTimeoutStr = "0s"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "json"
	}
	if cfg.Serve.IntervalStr == "" {
		cfg.Serve.IntervalStr = "1h"
	}
	if cfg.Serve.MetricsAddr == "" {
		cfg.Serve.MetricsAddr = ":9464"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Audit.CallTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse call_timeout %q: %w", cfg.Audit.CallTimeoutStr, err)
	}
	cfg.Audit.CallTimeout = d

	d, err = time.ParseDuration(cfg.Serve.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Serve.IntervalStr, err)
	}
	cfg.Serve.Interval = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Audit.MaxWorkers < 0 {
		return fmt.Errorf("audit: max_workers must not be negative (got %d)", c.Audit.MaxWorkers)
	}
	if c.Audit.CheckWorkers < 0 {
		return fmt.Errorf("audit: check_workers must not be negative (got %d)", c.Audit.CheckWorkers)
	}
	if c.Audit.CallTimeout < 0 {
		return fmt.Errorf("audit: call_timeout must not be negative (got %s)", c.Audit.CallTimeout)
	}
	if c.Storage.KeepRuns < 0 {
		return fmt.Errorf("storage: keep_runs must not be negative (got %d)", c.Storage.KeepRuns)
	}
	switch c.Output.Format {
	case "json", "none":
	default:
		return fmt.Errorf("output: unknown format %q", c.Output.Format)
	}
	if c.Serve.Interval <= 0 {
		return fmt.Errorf("serve: interval must be positive (got %s)", c.Serve.Interval)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
