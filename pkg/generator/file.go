package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/emitter"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// fileResult is what one header contributes to its module.
type fileResult struct {
	header header
	// sipFile is the output below the output directory, empty when the
	// header declared nothing.
	sipFile    string
	moduleCode *sip.CodeMap
	// includes are the direct includes found below an include root.
	includes []string
	// roots are the include directories the generated code needs.
	roots   []string
	hits    *rules.Hits
	written bool
	err     error
}

// rendering is the part of a fileResult that only depends on the header
// content and the rules, and may come from the cache.
type rendering struct {
	Body       string      `json:"body"`
	ModuleCode [][2]string `json:"module_code,omitempty"`
	// Includes are the resolved direct includes.
	Includes []string `json:"includes,omitempty"`
	// Deps are other headers read, with the hash of their content.
	Deps map[string]string `json:"deps,omitempty"`

	hits *rules.Hits
}

// processFile renders one header and writes its SIP file. Every failure
// ends up in the result.
func (g *Generator) processFile(ctx context.Context, h header) *fileResult {
	ctx, span := g.tracer.Start(ctx, "sipgen.file")
	defer span.End()

	span.SetAttributes(attribute.String("sipgen.header", h.rel))

	start := time.Now()

	g.recorder.FileStarted(ctx)

	res := &fileResult{header: h, moduleCode: sip.NewCodeMap()}

	r, cached, err := g.render(ctx, h)
	if err == nil {
		err = g.finish(res, r)
	}

	if err != nil {
		res.err = err

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.ErrorContext(ctx, "failed to generate", failureAttrs(h.path, err)...)
	}

	g.recorder.FileDone(ctx, time.Since(start), err != nil, cached)
	g.recorder.RuleHits(ctx, res.hits.Total())

	return res
}

// finish turns a rendering into its SIP file and module contributions.
func (g *Generator) finish(res *fileResult, r *rendering) error {
	res.hits = r.hits

	for _, kv := range r.ModuleCode {
		res.moduleCode.Set(kv[0], kv[1])
	}

	for _, inc := range r.Includes {
		if g.underIncludeRoot(inc) {
			res.includes = append(res.includes, inc)
		}
	}

	res.roots = g.includeRootsFor(res.header.rel, r.Includes)

	if r.Body == "" {
		g.logger.Info("not creating empty SIP", "header", res.header.path)

		return nil
	}

	res.sipFile = sipFileFor(res.header.rel)

	written, err := g.out.write(res.sipFile, fileHeader(res.sipFile, res.header.rel, g.rs.Package, g.rs.Copying)+r.Body)
	if err != nil {
		return err
	}

	res.written = written

	return nil
}

// render emits the header, or returns the cached rendering when neither
// the header, the headers it forwarded to, nor the rules changed.
func (g *Generator) render(ctx context.Context, h header) (r *rendering, cached bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, cached = nil, false
			err = fmt.Errorf("%w: %s: %v", ErrPanic, h.rel, p)
		}
	}()

	content, err := os.ReadFile(h.path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", cxxast.ErrParse, err)
	}

	db := g.rs.DbFor(h.rel)
	key := g.cacheKey(db, h, content)

	if hit, ok := g.cached(key); ok {
		g.logger.DebugContext(ctx, "cache hit", "header", h.rel)

		return hit, true, nil
	}

	r, err = g.emit(ctx, db, h, content)
	if err != nil {
		return nil, false, err
	}

	g.store(key, r)

	return r, false, nil
}

func (g *Generator) emit(ctx context.Context, db *rules.Db, h header, content []byte) (*rendering, error) {
	em := emitter.New(db, g.opts.Emitter)

	result, err := g.emitSource(ctx, em, h.path, content, h.rel)
	if err != nil {
		return nil, err
	}

	r := &rendering{Deps: map[string]string{}}

	// A header declaring nothing but one include from this project
	// forwards to it, "KAboutData" to "kaboutdata.h".
	if result.Body == "" && len(result.Includes) == 1 && g.underSourceRoot(result.Includes[0].Path) {
		target := result.Includes[0].Path

		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cxxast.ErrParse, err)
		}

		g.logger.DebugContext(ctx, "expanding forwarding header", "header", h.rel, "target", target)

		forwarded, err := g.emitSource(ctx, em, target, data, h.rel)
		if err != nil {
			return nil, err
		}

		result.Hits.Add(forwarded.Hits)
		forwarded.Hits = result.Hits
		result = forwarded
		r.Deps[target] = cache.Key(data)
	}

	r.Body = result.Body
	r.hits = result.Hits

	for _, k := range result.ModuleCode.Keys() {
		v, _ := result.ModuleCode.Get(k)
		r.ModuleCode = append(r.ModuleCode, [2]string{k, v})
	}

	for _, inc := range result.Includes {
		if inc.Path != "" {
			r.Includes = append(r.Includes, filepath.Clean(inc.Path))
		}
	}

	return r, nil
}

func (g *Generator) emitSource(ctx context.Context, em *emitter.Emitter, file string, content []byte, includeName string) (*emitter.Result, error) {
	tu, err := g.parser.Parse(ctx, file, content, g.flags)
	if err != nil {
		return nil, err
	}
	defer tu.Close()

	return em.Emit(ctx, tu, includeName)
}

func (g *Generator) cacheKey(db *rules.Db, h header, content []byte) string {
	if g.opts.Cache == nil {
		return ""
	}

	opts := strconv.FormatBool(g.opts.Emitter.TraceDiscards) + strconv.FormatBool(g.opts.Emitter.DumpItems)

	return cache.Key(content, []byte(db.Digest()), []byte(h.rel), []byte(fmt.Sprint(g.flags)), []byte(opts))
}

func (g *Generator) cached(key string) (*rendering, bool) {
	if key == "" {
		return nil, false
	}

	data, ok := g.opts.Cache.Get(key)
	if !ok {
		return nil, false
	}

	var r rendering
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false
	}

	for dep, sum := range r.Deps {
		content, err := os.ReadFile(dep)
		if err != nil || cache.Key(content) != sum {
			return nil, false
		}
	}

	r.hits = rules.NewHits()

	return &r, true
}

func (g *Generator) store(key string, r *rendering) {
	if key == "" {
		return
	}

	data, err := json.Marshal(r)
	if err != nil {
		return
	}

	if err := g.opts.Cache.Put(key, data); err != nil {
		g.logger.Warn("failed to store rendering", "error", err)
	}
}

func (g *Generator) underSourceRoot(p string) bool {
	return p != "" && within(g.root, p)
}

func (g *Generator) underIncludeRoot(p string) bool {
	for _, root := range g.includeRoots {
		if within(root, p) {
			return true
		}
	}

	return false
}

// includeRootsFor lists the include directories needed to compile the
// bindings of the header rel. Since the length of each -I path cannot be
// known, every directory between an include root and an included file is
// listed.
func (g *Generator) includeRootsFor(rel string, includes []string) []string {
	trimmed := map[string]map[string]bool{g.root: {path.Dir(rel): true}}
	order := []string{g.root}

	for _, root := range g.includeRoots {
		if _, ok := trimmed[root]; !ok {
			trimmed[root] = map[string]bool{}
			order = append(order, root)
		}
	}

	for _, inc := range includes {
		for _, root := range order {
			if within(root, inc) {
				sub, _ := filepath.Rel(root, filepath.Dir(inc))
				trimmed[root][filepath.ToSlash(sub)] = true

				break
			}
		}
	}

	seen := map[string]bool{}

	var out []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range order {
		add(root)

		for sub := range trimmed[root] {
			for sub != "" && sub != "." && sub != "/" {
				add(filepath.Join(root, filepath.FromSlash(sub)))
				sub = path.Dir(sub)
			}
		}
	}

	return out
}

// within reports whether p lies below dir.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)

	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// sipFileFor names the SIP file of the header rel: "KCodecs/kcodecs.h" is
// "KCodecs/kcodecs.sip". A file named like its directory gets a trailing
// underscore, "KCodecs/KCodecs_.sip", since the SIP compiler confuses it
// with the directory.
func sipFileFor(rel string) string {
	rel = strings.ReplaceAll(rel, "+", "_")
	dir := path.Dir(rel)
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))

	if stem == path.Base(dir) {
		stem += "_"
	}

	if dir == "." {
		return stem + ".sip"
	}

	return dir + "/" + stem + ".sip"
}

// fileHeader starts every generated file.
func fileHeader(output, derivedFrom, pkg, copying string) string {
	var b strings.Builder

	b.WriteString("//\n")
	b.WriteString("// This file, " + output + ", is part of " + pkg + ".\n")
	b.WriteString("// It was derived from " + derivedFrom + ".\n")
	b.WriteString("//\n")

	if copying != "" {
		b.WriteString(sip.Block("%Copying", copying))
		b.WriteString("//\n")
	}

	return b.String()
}

// failureAttrs describes a failed file for the log, naming the rule and
// item when a rule handler failed.
func failureAttrs(p string, err error) []any {
	attrs := []any{"path", p, "error", err}

	var herr *rules.HandlerError
	if errors.As(err, &herr) {
		attrs = append(attrs, "rule", herr.Rule, "item", herr.Item)
	}

	return attrs
}
