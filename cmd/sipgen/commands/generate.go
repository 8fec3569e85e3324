package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sipgen/internal/observability"
	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/config"
	"github.com/Sumatoshi-tech/sipgen/pkg/emitter"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
	"github.com/Sumatoshi-tech/sipgen/pkg/report"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

const (
	flagRules         = "rules"
	flagOutput        = "output"
	flagJobs          = "jobs"
	flagSelect        = "select"
	flagOmit          = "omit"
	flagCheck         = "check"
	flagDumpUsage     = "dump-rule-usage"
	flagReport        = "report"
	flagMetricsAddr   = "metrics-addr"
	flagTraceDiscards = "trace-discards"
	flagDumpItems     = "dump-items"
	flagNoCache       = "no-cache"

	metricsPath            = "/metrics"
	metricsShutdownTimeout = 2 * time.Second
	metricsReadTimeout     = 5 * time.Second
)

// generateFlags holds the values of the generate flags. Only flags the user
// set override the configuration.
type generateFlags struct {
	rules         string
	output        string
	jobs          int
	selectRe      string
	omitRe        string
	check         bool
	dumpUsage     bool
	report        string
	metricsAddr   string
	traceDiscards bool
	dumpItems     bool
	noCache       bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate [rules-package]",
		Short: "Generate SIP files for a source tree",
		Long: `Generate SIP files for every header of the source tree described by a
rules package, one SIP module per directory.

The rules package is the directory holding sipgen.yaml. It is taken from the
argument, --rules or the rules.package configuration key, in that order.

Files that fail to render are reported and do not stop the run. With --check
nothing is written; the command lists the files that would change, prints
their diffs and fails when any would.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.rules, flagRules, "", "rules package directory")
	fl.StringVarP(&f.output, flagOutput, "o", "", "output directory for SIP files")
	fl.IntVarP(&f.jobs, flagJobs, "j", config.DefaultJobs, "headers rendered in parallel (-1 for every CPU)")
	fl.StringVar(&f.selectRe, flagSelect, "", "regular expression choosing headers, relative to the source root")
	fl.StringVar(&f.omitRe, flagOmit, "", "regular expression of headers to skip")
	fl.BoolVar(&f.check, flagCheck, false, "report differences instead of writing")
	fl.BoolVar(&f.dumpUsage, flagDumpUsage, false, "print rule hit counts and the rules that never fired")
	fl.StringVar(&f.report, flagReport, "", "write an HTML rule usage chart to this file")
	fl.StringVar(&f.metricsAddr, flagMetricsAddr, "", "serve Prometheus metrics on this address during the run")
	fl.BoolVar(&f.traceDiscards, flagTraceDiscards, false, "leave a comment for every discarded item")
	fl.BoolVar(&f.dumpItems, flagDumpItems, false, "log every item before rules are applied")
	fl.BoolVar(&f.noCache, flagNoCache, false, "render every header even when unchanged")

	return cmd
}

// apply copies the flags the user set onto cfg.
func (f *generateFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()

	if fl.Changed(flagOutput) {
		cfg.Output.Dir = f.output
	}

	if fl.Changed(flagJobs) {
		cfg.Generate.Jobs = f.jobs
	}

	if fl.Changed(flagSelect) {
		cfg.Generate.Select = f.selectRe
	}

	if fl.Changed(flagOmit) {
		cfg.Generate.Omit = f.omitRe
	}

	if fl.Changed(flagMetricsAddr) {
		cfg.Observability.PrometheusAddr = f.metricsAddr
	}

	cfg.Generate.TraceDiscards = cfg.Generate.TraceDiscards || f.traceDiscards
	cfg.Generate.DumpItems = cfg.Generate.DumpItems || f.dumpItems

	// Cached headers contribute no hits, so usage needs every header rendered.
	if f.noCache || f.dumpUsage || f.report != "" {
		cfg.Cache.Enabled = false
	}
}

func runGenerate(cmd *cobra.Command, args []string, f *generateFlags) error {
	if len(args) == 0 && f.rules != "" {
		args = []string{f.rules}
	}

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	f.apply(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	tel, err := initObservability(cmd, cfg, observability.ModeCLI, cfg.Observability.PrometheusAddr != "")
	if err != nil {
		return err
	}
	defer tel.close(cmd)

	if tel.MetricsHandler != nil {
		stop, serveErr := serveMetrics(cfg.Observability.PrometheusAddr, tel.MetricsHandler)
		if serveErr != nil {
			return serveErr
		}
		defer stop()

		tel.Logger.Info("serving metrics", "addr", cfg.Observability.PrometheusAddr, "path", metricsPath)
	}

	rs, err := loadRules(cfg)
	if err != nil {
		return err
	}

	gen, store, release, err := newGenerator(cmd, cfg, rs, tel, f.check)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()

	summary, err := processTree(cmd.Context(), gen, rs, cfg)
	if err != nil {
		return err
	}

	run := report.Run{Summary: summary, Elapsed: time.Since(start), Check: f.check}

	if store != nil {
		stats := store.Stats()
		run.Cache = &stats
	}

	out := cmd.OutOrStdout()

	if f.dumpUsage {
		if err := report.UsageTable(out, rs.Usage(summary.Hits)); err != nil {
			return err
		}
	}

	if f.report != "" {
		if err := writeChart(f.report, rs, summary.Hits); err != nil {
			return err
		}
	}

	if !globalBool(cmd, FlagQuiet) {
		report.PrintSummary(out, run)
	}

	if f.check && len(summary.Written) > 0 {
		return fmt.Errorf("%w: %d files", ErrOutOfDate, len(summary.Written))
	}

	return nil
}

// newGenerator wires the configuration, cache and telemetry into a
// generator. release drops the cache instruments.
func newGenerator(
	cmd *cobra.Command, cfg *config.Config, rs *rules.RuleSet, tel *telemetry, check bool,
) (gen *generator.Generator, store *cache.Store, release func(), err error) {
	recorder, err := observability.NewGenerationMetrics(tel.Meter)
	if err != nil {
		return nil, nil, nil, err
	}

	release = func() {}

	store = newCache(cfg)
	if store != nil {
		reg, regErr := observability.RegisterCacheMetrics(tel.Meter, store)
		if regErr != nil {
			return nil, nil, nil, regErr
		}

		release = func() { _ = reg.Unregister() }
	}

	gen, err = generator.New(rs, generator.Options{
		OutputDir: cfg.Output.Dir,
		Emitter: emitter.Options{
			TraceDiscards: cfg.Generate.TraceDiscards,
			DumpItems:     cfg.Generate.DumpItems,
		},
		Check:    check,
		Diff:     cmd.OutOrStdout(),
		Cache:    store,
		Logger:   tel.Logger,
		Tracer:   tel.Tracer,
		Recorder: recorder,
	})
	if err != nil {
		release()

		return nil, nil, nil, err
	}

	return gen, store, release, nil
}

func processTree(ctx context.Context, gen *generator.Generator, rs *rules.RuleSet, cfg *config.Config) (*generator.Summary, error) {
	selector, err := rs.Selector(cfg.Generate.Select)
	if err != nil {
		return nil, err
	}

	omitter, err := rs.Omitter(cfg.Generate.Omit)
	if err != nil {
		return nil, err
	}

	return gen.ProcessTree(ctx, cfg.Generate.Jobs, selector, omitter)
}

func writeChart(path string, rs *rules.RuleSet, hits *rules.Hits) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	chartErr := report.UsageChart(file, rs.Package+" rule usage", rs.Usage(hits))

	return errors.Join(chartErr, file.Close())
}

// serveMetrics serves handler until the returned stop function is called.
func serveMetrics(addr string, handler http.Handler) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadTimeout}

	go func() { _ = srv.Serve(listener) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}, nil
}
