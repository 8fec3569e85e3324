package generator

import (
	"context"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// includesExtract is the %Extract listing the include roots of a module.
const includesExtract = "includes"

// moduleJob is the index of one directory and what writing it produced.
type moduleJob struct {
	dir   *directory
	files []*fileResult

	output  string
	hits    *rules.Hits
	written bool
	err     error
}

// writeModules writes the module indexes concurrently. Only cancellation
// is returned; other failures stay on their job.
func (g *Generator) writeModules(ctx context.Context, jobs []*moduleJob, features *featureSet, omitter *regexp2.Regexp) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())

	for _, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			job.err = g.writeModule(ctx, job, features, omitter)

			return nil
		})
	}

	return eg.Wait()
}

// writeModule renders the index of one directory: its %Module, the
// imports of what its headers include, the include roots, the merged
// module code and an %Include of every generated file.
func (g *Generator) writeModule(ctx context.Context, job *moduleJob, features *featureSet, omitter *regexp2.Regexp) error {
	var (
		sipFiles   []string
		moduleCode = sip.NewCodeMap()
		imports    = map[string]bool{}
		roots      = map[string]bool{}
	)

	for _, f := range job.files {
		if f.sipFile == "" {
			continue
		}

		sipFiles = append(sipFiles, f.sipFile)
		moduleCode.Merge(f.moduleCode)

		for _, r := range f.roots {
			roots[r] = true
		}

		for _, inc := range f.includes {
			if imp, ok := g.importFor(inc, omitter); ok {
				imports[imp] = true
			}
		}
	}

	if len(sipFiles) == 0 {
		return nil
	}

	rel := strings.ReplaceAll(job.dir.rel, "+", "_")

	name := g.rs.Package
	output := g.rs.Package + moduleSuffix

	if rel != "" {
		name = g.rs.Package + "." + strings.ReplaceAll(rel, "/", ".")
		output = moduleFile(rel)
	}

	job.output = output

	ctx, span := g.tracer.Start(ctx, "sipgen.module")
	defer span.End()

	span.SetAttributes(attribute.String("sipgen.module", output))

	features.add(rulehelpers.Feature(output))

	var decl strings.Builder

	decl.WriteString("%Module(name=" + name + ")\n")
	decl.WriteString("\n%ModuleHeaderCode\n#pragma GCC visibility push(default)\n%End\n")

	importList := keys(imports)
	sortFold(importList)

	for _, imp := range importList {
		switch {
		case !g.imports.predicted[imp]:
			decl.WriteString("%Import(name=" + imp + ")\n")
		case imp != output:
			// Modules importing each other confuse the SIP compiler, so
			// every import of a sibling is behind its feature.
			feature := rulehelpers.Feature(imp)
			features.add(feature)
			decl.WriteString("%If (" + feature + ")\n%Import(name=" + imp + ")\n%End\n")
		}
	}

	rootList := keys(roots)
	sortFold(rootList)

	decl.WriteString("%Extract(id=" + includesExtract + ")\n")

	for _, r := range rootList {
		decl.WriteString(r + "\n")
	}

	decl.WriteString("%End\n")

	rec := sip.NewRecord(name)
	rec.Decl = decl.String()
	rec.ModuleCode = moduleCode

	job.hits = rules.NewHits()
	rctx := &rules.Context{
		Stage:    rules.StageModuleCode,
		Filename: output,
		Hits:     job.hits,
		Logger:   g.logger,
	}

	entry, err := g.rs.DbFor(job.files[0].header.rel).ApplyModuleCode(rctx, rec, output)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		g.logger.ErrorContext(ctx, "failed to generate module", failureAttrs(output, err)...)

		return err
	}

	if entry != nil && rec.Discarded() {
		g.logger.InfoContext(ctx, "module discarded", "module", output, "rule", entry.String())

		return nil
	}

	var b strings.Builder

	b.WriteString(fileHeader(output, job.dir.rel, g.rs.Package, g.rs.Copying))

	if entry != nil {
		b.WriteString(sip.ModifiedBy(path.Base(output), entry.String()))
	}

	b.WriteString(rec.Decl)
	b.WriteString("\n")

	for _, k := range rec.ModuleCode.SortedKeys() {
		v, _ := rec.ModuleCode.Get(k)
		b.WriteString(v)
	}

	b.WriteString("\n")

	for _, f := range sipFiles {
		b.WriteString("%Include(name=" + f + ")\n")
	}

	b.WriteString(rec.Code)

	g.logger.InfoContext(ctx, "creating module", "module", output, "files", len(sipFiles))

	job.written, err = g.out.write(output, b.String())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// importFor maps an included header to the index of its module, trying
// the include roots in order. Only the first root holding the header is
// consulted.
func (g *Generator) importFor(inc string, omitter *regexp2.Regexp) (string, bool) {
	if strings.HasSuffix(inc, "_export.h") || strings.HasSuffix(inc, "_version.h") {
		return "", false
	}

	for _, root := range g.includeRoots {
		if !within(root, inc) {
			continue
		}

		rel, _ := filepath.Rel(root, inc)
		rel = filepath.ToSlash(rel)

		if matches(omitter, rel) {
			return "", false
		}

		sip, ok := g.imports.lookup(path.Dir(rel))
		if !ok {
			g.logger.Warn("cannot find SIP module for include", "include", inc)
		}

		return sip, ok
	}

	return "", false
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	slices.Sort(out)

	return out
}
