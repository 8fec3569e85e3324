// Package generator drives a whole rules package: it walks the header tree,
// renders every selected header with the emitter, and writes one module
// index per directory plus the list of module features.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/emitter"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// Sentinel errors for run-level failures.
var (
	// ErrSourceRoot is returned when the source root cannot be read.
	ErrSourceRoot = errors.New("unreadable source root")
	// ErrLocked is returned when another run holds the output directory.
	ErrLocked = errors.New("output directory is locked by another run")
	// ErrNoOutput is returned when no output directory was configured.
	ErrNoOutput = errors.New("no output directory")
	// ErrPanic wraps a panic raised while rendering one header. It fails
	// that header only.
	ErrPanic = errors.New("panic while rendering")
)

// FeaturesFile lists the %Feature of every generated module.
const FeaturesFile = "modules.features"

const lockFile = ".sipgen.lock"

// Options configure a Generator.
type Options struct {
	// OutputDir receives the SIP files.
	OutputDir string
	Emitter   emitter.Options
	// Check renders without writing; differences from the files on disk
	// are written to Diff as unified diffs.
	Check bool
	Diff  io.Writer
	// Cache, when set, keeps renderings of unchanged headers.
	Cache    *cache.Store
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Recorder Recorder
}

// Recorder receives per-file measurements.
type Recorder interface {
	FileStarted(ctx context.Context)
	FileDone(ctx context.Context, d time.Duration, failed, cached bool)
	RuleHits(ctx context.Context, n int)
}

type nopRecorder struct{}

func (nopRecorder) FileStarted(context.Context)                         {}
func (nopRecorder) FileDone(context.Context, time.Duration, bool, bool) {}
func (nopRecorder) RuleHits(context.Context, int)                       {}

// Failure is a header or module that could not be generated.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Summary is the outcome of ProcessTree.
type Summary struct {
	// Attempts counts the headers processed.
	Attempts int
	Failures []Failure
	// Directories counts the directories holding at least one attempt.
	Directories int
	// Written lists the output files, relative to the output directory,
	// that were created or changed. In check mode these are the files
	// that would change.
	Written []string
	// Hits collects rule usage over the run. Headers served from the
	// cache contribute nothing.
	Hits *rules.Hits
	// Features are the module features, sorted.
	Features []string
}

// Generator renders the headers of one rule set.
type Generator struct {
	rs       *rules.RuleSet
	opts     Options
	parser   *cxxast.Parser
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	flags    cxxast.Flags
	root     string
	// includeRoots are tried in order to turn an include into a module.
	includeRoots []string
	imports      *importMap
	out          *output
}

// New prepares a generator for rs. The source root must be readable.
func New(rs *rules.RuleSet, opts Options) (*Generator, error) {
	if opts.OutputDir == "" && !opts.Check {
		return nil, ErrNoOutput
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts.Emitter.Logger = logger

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("sipgen")
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	root := rs.SourceRootDir()

	imports, err := newImportMap(root, rs.SipRoots())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRoot, err)
	}

	includeRoots := rs.IncludeDirs()
	if !slices.Contains(includeRoots, root) {
		includeRoots = append(includeRoots, root)
	}

	return &Generator{
		rs:           rs,
		opts:         opts,
		parser:       cxxast.NewParser(logger, rs.Macros, rs.FunctionMacros),
		logger:       logger,
		tracer:       tracer,
		recorder:     recorder,
		flags:        rs.Flags(),
		root:         root,
		includeRoots: includeRoots,
		imports:      imports,
		out:          newOutput(opts.OutputDir, opts.Check, opts.Diff),
	}, nil
}

// ProcessTree renders every header chosen by selector and not by omitter,
// both matched against the path relative to the source root, then writes
// the module index of every directory. jobs above one renders that many
// headers in parallel; a negative value uses every CPU.
//
// Per-file failures are collected in the summary and never stop the run.
// The error reports run-level problems: an unreadable tree, a locked
// output directory or cancellation, in which case partial results are
// dropped.
func (g *Generator) ProcessTree(ctx context.Context, jobs int, selector, omitter *regexp2.Regexp) (*Summary, error) {
	ctx, span := g.tracer.Start(ctx, "sipgen.process_tree")
	defer span.End()

	unlock, err := g.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	dirs, err := g.discover(selector, omitter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("%w: %w", ErrSourceRoot, err)
	}

	var all []header
	for _, d := range dirs {
		all = append(all, d.headers...)
	}

	span.SetAttributes(attribute.Int("sipgen.headers", len(all)), attribute.Int("sipgen.directories", len(dirs)))
	g.logger.Info("processing tree", "root", g.root, "headers", len(all), "directories", len(dirs))

	results := g.runFiles(ctx, jobs, all)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{Hits: rules.NewHits()}
	features := newFeatureSet()

	next := 0

	modules := make([]*moduleJob, 0, len(dirs))

	for _, d := range dirs {
		files := results[next : next+len(d.headers)]
		next += len(d.headers)

		summary.Attempts += len(files)
		if len(files) > 0 {
			summary.Directories++
		}

		for _, f := range files {
			if f.err != nil {
				summary.Failures = append(summary.Failures, Failure{Path: f.header.path, Err: f.err})
			}

			if f.hits != nil {
				summary.Hits.Add(f.hits)
			}

			if f.written {
				summary.Written = append(summary.Written, f.sipFile)
			}
		}

		modules = append(modules, &moduleJob{dir: d, files: files})
	}

	if err := g.writeModules(ctx, modules, features, omitter); err != nil {
		return nil, err
	}

	for _, m := range modules {
		if m.err != nil {
			summary.Failures = append(summary.Failures, Failure{Path: m.output, Err: m.err})
		}

		if m.hits != nil {
			summary.Hits.Add(m.hits)
		}

		if m.written {
			summary.Written = append(summary.Written, m.output)
		}
	}

	summary.Features = features.sorted()

	written, err := g.out.write(FeaturesFile, featuresText(summary.Features))
	if err != nil {
		summary.Failures = append(summary.Failures, Failure{Path: FeaturesFile, Err: err})
	} else if written {
		summary.Written = append(summary.Written, FeaturesFile)
	}

	span.SetAttributes(attribute.Int("sipgen.failures", len(summary.Failures)))

	return summary, nil
}

// runFiles renders headers on a pool of workers. Results keep the order
// of headers.
func (g *Generator) runFiles(ctx context.Context, jobs int, headers []header) []*fileResult {
	results := make([]*fileResult, len(headers))
	if len(headers) == 0 {
		return results
	}

	workers := jobs
	if workers < 0 {
		workers = runtime.NumCPU()
	}

	if workers < 1 {
		workers = 1
	}

	if workers > len(headers) {
		workers = len(headers)
	}

	type indexedHeader struct {
		idx int
		h   header
	}

	ch := make(chan indexedHeader, workers)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for item := range ch {
				results[item.idx] = g.processFile(ctx, item.h)
			}
		}()
	}

	for idx, h := range headers {
		if ctx.Err() != nil {
			break
		}

		ch <- indexedHeader{idx: idx, h: h}
	}

	close(ch)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			results[i] = &fileResult{header: headers[i], err: ctx.Err()}
		}
	}

	return results
}

// lock takes the output directory for the run. Check runs read only and
// take no lock.
func (g *Generator) lock() (func(), error) {
	if g.opts.Check {
		return func() {}, nil
	}

	if err := g.out.mkdir(""); err != nil {
		return nil, err
	}

	fileLock := flock.New(g.out.path(lockFile))

	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, g.opts.OutputDir)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			g.logger.Warn("failed to release output lock", "error", err)
		}
	}, nil
}

// featureSet collects module features from the index writers.
type featureSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newFeatureSet() *featureSet {
	return &featureSet{set: map[string]struct{}{}}
}

func (f *featureSet) add(feature string) {
	f.mu.Lock()
	f.set[feature] = struct{}{}
	f.mu.Unlock()
}

func (f *featureSet) sorted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.set))
	for k := range f.set {
		out = append(out, k)
	}

	sortFold(out)

	return out
}

func featuresText(features []string) string {
	var b strings.Builder
	for _, f := range features {
		b.WriteString("%Feature(name=" + f + ")\n")
	}

	return b.String()
}
