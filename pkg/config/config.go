// Package config loads the sipgen run configuration from defaults, an
// optional .sipgen.yaml file, .env files and SIPGEN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sentinel validation errors.
var (
	ErrInvalidJobs         = errors.New("generate jobs must be -1 or positive")
	ErrMissingRulesPackage = errors.New("rules package is not set")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidSampleRatio  = errors.New("sample ratio must be between 0 and 1")
	ErrInvalidCacheSize    = errors.New("cache max bytes must not be negative")
)

// Config holds the run configuration.
type Config struct {
	Rules         RulesConfig         `mapstructure:"rules"`
	Output        OutputConfig        `mapstructure:"output"`
	Generate      GenerateConfig      `mapstructure:"generate"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Log           LogConfig           `mapstructure:"log"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// RulesConfig locates the rules package.
type RulesConfig struct {
	// Package is the directory holding sipgen.yaml.
	Package string `mapstructure:"package"`
}

// OutputConfig controls where SIP files go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// GenerateConfig holds the knobs of a generate run.
type GenerateConfig struct {
	Select        string `mapstructure:"select"`
	Omit          string `mapstructure:"omit"`
	Jobs          int    `mapstructure:"jobs"`
	TraceDiscards bool   `mapstructure:"trace_discards"`
	DumpItems     bool   `mapstructure:"dump_items"`
}

// CacheConfig holds rendering cache configuration.
type CacheConfig struct {
	// Dir is the on-disk cache. Empty keeps the cache in memory.
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ObservabilityConfig holds telemetry export configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	// OTLPHeaders uses the "key=value,key=value" format.
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	PrometheusAddr  string  `mapstructure:"prometheus_addr"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout_sec"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
}

// Validate checks the configuration for consistency. A missing rules
// package is reported separately by RequireRules since not every
// command needs one.
func (c *Config) Validate() error {
	if c.Generate.Jobs == 0 || c.Generate.Jobs < -1 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Generate.Jobs)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.Cache.MaxBytes)
	}

	return nil
}

// RequireRules reports ErrMissingRulesPackage when no rules package is
// configured.
func (c *Config) RequireRules() error {
	if strings.TrimSpace(c.Rules.Package) == "" {
		return ErrMissingRulesPackage
	}

	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}
