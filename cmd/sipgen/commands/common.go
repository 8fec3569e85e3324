// Package commands implements the sipgen subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sipgen/internal/observability"
	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/config"
	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/version"
)

// Global flag names, registered on the root command.
const (
	FlagConfig  = "config"
	FlagVerbose = "verbose"
	FlagQuiet   = "quiet"
)

// Command errors.
var (
	// ErrOutOfDate is returned by a check run that found changes.
	ErrOutOfDate = errors.New("generated files are out of date")
	// ErrInvalidRules is returned when a rules package has problems.
	ErrInvalidRules = errors.New("rules package is invalid")
)

// AddGlobalFlags registers the flags every subcommand reads.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String(FlagConfig, "", "config file (default .sipgen.yaml in . or $HOME)")
	root.PersistentFlags().BoolP(FlagVerbose, "v", false, "verbose output")
	root.PersistentFlags().BoolP(FlagQuiet, "q", false, "suppress output")
}

// globalString reads an inherited flag; a command run on its own has none.
func globalString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}

	return v
}

func globalBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)

	return err == nil && v
}

// loadConfig reads the configuration and lets the rules package argument
// override it.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(globalString(cmd, FlagConfig))
	if err != nil {
		return nil, err
	}

	if len(args) > 0 && args[0] != "" {
		cfg.Rules.Package = args[0]
	}

	if err := cfg.RequireRules(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type telemetry struct {
	observability.Providers
}

// initObservability sets up logging, tracing and metrics for a command and
// makes the logger the default.
func initObservability(cmd *cobra.Command, cfg *config.Config, mode observability.AppMode, prometheus bool) (*telemetry, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case globalBool(cmd, FlagVerbose):
		level = slog.LevelDebug
	case globalBool(cmd, FlagQuiet):
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Log.JSON || mode == observability.ModeMCP
	obsCfg.Prometheus = prometheus
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.ShutdownTimeoutSec = cfg.Observability.ShutdownTimeout
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		obsCfg.OTLPInsecure = obsCfg.OTLPInsecure || os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	}

	if obsCfg.OTLPHeaders == nil {
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	slog.SetDefault(providers.Logger)

	return &telemetry{Providers: providers}, nil
}

func (t *telemetry) close(cmd *cobra.Command) {
	if err := t.Shutdown(cmd.Context()); err != nil {
		t.Logger.Warn("observability shutdown failed", "error", err)
	}
}

func loadRules(cfg *config.Config) (*rules.RuleSet, error) {
	rs, err := rules.LoadRuleSet(cfg.Rules.Package, rulehelpers.Default())
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	return rs, nil
}

// newCache returns the rendering cache, or nil when it is disabled.
func newCache(cfg *config.Config) *cache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}

	return cache.NewStore(cfg.Cache.Dir, cfg.Cache.MaxBytes)
}
