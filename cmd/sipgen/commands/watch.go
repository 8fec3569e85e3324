package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
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
	flagDebounce    = "debounce"
	defaultDebounce = 300 * time.Millisecond
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		f        generateFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [rules-package]",
		Short: "Regenerate SIP files whenever headers or rules change",
		Long: `Generate once, then watch the source tree and the rules package and
regenerate after every change. Unchanged headers are served from the cache, so
only the headers that changed are rendered again. A rule change reloads the
rules package; a broken one is reported and the previous rules stay in use.

Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			tel, err := initObservability(cmd, cfg, observability.ModeCLI, false)
			if err != nil {
				return err
			}
			defer tel.close(cmd)

			w := &watcher{
				cfg:      cfg,
				tel:      tel,
				store:    cache.NewStore(cfg.Cache.Dir, cfg.Cache.MaxBytes),
				out:      cmd.OutOrStdout(),
				quiet:    globalBool(cmd, FlagQuiet),
				debounce: debounce,
				logger:   tel.Logger,
			}

			return w.run(cmd.Context())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.rules, flagRules, "", "rules package directory")
	fl.StringVarP(&f.output, flagOutput, "o", "", "output directory for SIP files")
	fl.IntVarP(&f.jobs, flagJobs, "j", config.DefaultJobs, "headers rendered in parallel (-1 for every CPU)")
	fl.StringVar(&f.selectRe, flagSelect, "", "regular expression choosing headers, relative to the source root")
	fl.StringVar(&f.omitRe, flagOmit, "", "regular expression of headers to skip")
	fl.BoolVar(&f.traceDiscards, flagTraceDiscards, false, "leave a comment for every discarded item")
	fl.DurationVar(&debounce, flagDebounce, defaultDebounce, "quiet period before regenerating")

	return cmd
}

// watcher regenerates a tree on file system events. The cache is kept
// across runs; it is always on here since it is what keeps a rerun cheap.
type watcher struct {
	cfg      *config.Config
	tel      *telemetry
	store    *cache.Store
	out      io.Writer
	quiet    bool
	debounce time.Duration
	logger   *slog.Logger

	rs       *rules.RuleSet
	rulesDir string
}

func (w *watcher) run(ctx context.Context) error {
	// Event names are compared against these paths.
	abs, err := filepath.Abs(w.cfg.Rules.Package)
	if err != nil {
		return fmt.Errorf("rules package: %w", err)
	}

	w.cfg.Rules.Package = abs

	rs, err := loadRules(w.cfg)
	if err != nil {
		return err
	}

	w.rs = rs
	w.rulesDir = rs.Dir

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.watchTrees(fsw); err != nil {
		return err
	}

	if err := w.generate(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	rulesChanged := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if !w.relevant(fsw, event) {
				continue
			}

			if w.isRulesFile(event.Name) {
				rulesChanged = true
			}

			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if rulesChanged {
				rulesChanged = false

				w.reloadRules()
			}

			if err := w.generate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}

				w.logger.Error("generation failed", "error", err)
			}
		}
	}
}

// watchTrees adds the rules package and every directory below the source
// directories.
func (w *watcher) watchTrees(fsw *fsnotify.Watcher) error {
	if err := addTree(fsw, w.rulesDir); err != nil {
		return err
	}

	for _, dir := range w.rs.SourceDirs() {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = filepath.Dir(dir)
		}

		if err := addTree(fsw, dir); err != nil {
			return err
		}
	}

	return nil
}

// relevant reports whether event should trigger a run. New directories
// are watched as they appear.
func (w *watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	if w.cfg.Output.Dir != "" && within(w.absOutput(), event.Name) {
		return false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(fsw, event.Name); err != nil {
				w.logger.Warn("cannot watch directory", "path", event.Name, "error", err)
			}
		}
	}

	return true
}

func (w *watcher) isRulesFile(name string) bool {
	if !within(w.rulesDir, name) {
		return false
	}

	ext := filepath.Ext(name)

	return ext == ".yaml" || ext == ".yml"
}

func (w *watcher) absOutput() string {
	abs, err := filepath.Abs(w.cfg.Output.Dir)
	if err != nil {
		return w.cfg.Output.Dir
	}

	return abs
}

// reloadRules swaps in the rules package from disk, keeping the old one
// when the new one does not load.
func (w *watcher) reloadRules() {
	rs, err := loadRules(w.cfg)
	if err != nil {
		w.logger.Error("rules not reloaded", "error", err)

		return
	}

	w.rs = rs
	w.logger.Info("rules reloaded", "package", rs.Package, "modules", len(rs.AllModules()))
}

func (w *watcher) generate(ctx context.Context) error {
	recorder, err := observability.NewGenerationMetrics(w.tel.Meter)
	if err != nil {
		return err
	}

	gen, err := generator.New(w.rs, generator.Options{
		OutputDir: w.cfg.Output.Dir,
		Emitter:   emitter.Options{TraceDiscards: w.cfg.Generate.TraceDiscards},
		Cache:     w.store,
		Logger:    w.logger,
		Tracer:    w.tel.Tracer,
		Recorder:  recorder,
	})
	if err != nil {
		return err
	}

	start := time.Now()

	summary, err := processTree(ctx, gen, w.rs, w.cfg)
	if err != nil {
		return err
	}

	if w.quiet {
		return nil
	}

	stats := w.store.Stats()
	report.PrintSummary(w.out, report.Run{Summary: summary, Elapsed: time.Since(start), Cache: &stats})

	return nil
}

// addTree watches root and every directory below it. fsnotify watches are
// not recursive.
func addTree(fsw *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	return nil
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)

	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
