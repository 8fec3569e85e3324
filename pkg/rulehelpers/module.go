package rulehelpers

import (
	"path"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// Module code helpers run with the module filename, "KCoreAddons/
// KCoreAddonsmod.sip", in ctx.Filename and the rendered module text in
// rec.Decl.

// Feature names the %Feature of a module file:
// "KCoreAddons/KCoreAddonsmod.sip" is "KCoreAddons_KCoreAddonsmod".
func Feature(filename string) string {
	return featureReplacer.Replace(strings.TrimSuffix(filename, path.Ext(filename)))
}

var featureReplacer = strings.NewReplacer("/", "_", ".", "_", "+", "_")

func guarded(filename, code string) string {
	return "%If (!" + Feature(filename) + ")\n" + code + "%End\n"
}

// modulecodeDelete replaces entries duplicated from an imported module by
// a trace.
func modulecodeDelete(keys []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		for _, key := range keys {
			rec.ModuleCode.Delete(key)
			rec.ModuleCode.Set(key, sip.DiscardedBy(key, ctx.Rule))
		}

		return nil
	}, nil
}

// modulecodeMakeLocal guards entries so that modules importing two
// definitions of the same thing see one.
func modulecodeMakeLocal(keys []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		for _, key := range keys {
			code, ok := rec.ModuleCode.Get(key)
			if !ok {
				continue
			}

			rec.ModuleCode.Set(key, sip.InsertedFor(key, ctx.Rule)+guarded(ctx.Filename, code))
		}

		return nil
	}, nil
}

func moduleAddClasses(classes []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		var b strings.Builder
		for _, c := range classes {
			b.WriteString("class " + c + ";\n")
		}

		rec.Code += sip.GeneratedFor(rec.Name, ctx.Rule, "missing classes") + guarded(ctx.Filename, b.String())

		return nil
	}, nil
}

func moduleAddImports(modules []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		var b strings.Builder
		for _, m := range modules {
			b.WriteString("%Import(name=" + m + ")\n")
		}

		rec.Code += sip.GeneratedFor(rec.Name, ctx.Rule, "missing imports") + guarded(ctx.Filename, b.String())

		return nil
	}, nil
}

// moduleDeleteImports comments out "%Import(name=...)" lines naming one of
// modules.
func moduleDeleteImports(modules []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		trace := strings.TrimSuffix(sip.GeneratedFor(rec.Name, ctx.Rule, "delete imports"), "\n")
		lines := strings.Split(rec.Decl, "\n")
		out := make([]string, 0, len(lines))

		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "%Import") {
				if _, name, ok := strings.Cut(strings.TrimSuffix(trimmed, ")"), "="); ok && slices.Contains(modules, name) {
					out = append(out, trace, "// "+trimmed)

					continue
				}
			}

			out = append(out, line)
		}

		rec.Decl = strings.Join(out, "\n")

		return nil
	}, nil
}

func moduleAddIncludes(includes []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		var b strings.Builder
		for _, inc := range includes {
			b.WriteString("#include " + inc + "\n")
		}

		rec.Code += sip.GeneratedFor(rec.Name, ctx.Rule, "missing includes") + sip.Block("%ModuleHeaderCode", b.String())

		return nil
	}, nil
}

func registerModules(r *Registry) {
	for _, m := range []struct {
		name, desc string
		f          Factory
	}{
		{"modulecode_delete", "replace duplicated module code by a trace", modulecodeDelete},
		{"modulecode_make_local", "guard module code with the module feature", modulecodeMakeLocal},
		{"module_add_classes", "declare missing classes", moduleAddClasses},
		{"module_add_imports", "import missing modules", moduleAddImports},
		{"module_delete_imports", "comment out unwanted imports", moduleDeleteImports},
		{"module_add_includes", "include missing headers", moduleAddIncludes},
	} {
		r.MustRegister(Descriptor{
			Name: m.name, Description: m.desc, Stages: moduleCodeStage, MinArgs: 1, MaxArgs: Unlimited,
		}, m.f)
	}
}
