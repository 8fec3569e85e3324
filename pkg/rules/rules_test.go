package rules_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

var errBoom = errors.New("boom")

// resolver knows a handful of actions and records which ones ran.
type resolver struct {
	builtin string
	calls   *[]string
}

func newResolver() *resolver {
	return &resolver{calls: &[]string{}}
}

func (r *resolver) Resolve(_ rules.Stage, action string, args []string) (rules.Handler, error) {
	record := func(ctx *rules.Context) { *r.calls = append(*r.calls, action+ctx.Rule) }

	switch action {
	case "discard":
		return func(ctx *rules.Context, rec *sip.Record) error {
			record(ctx)
			rec.Discard()

			return nil
		}, nil
	case "annotate":
		return func(ctx *rules.Context, rec *sip.Record) error {
			record(ctx)

			for _, a := range args {
				rec.Annotations.Add(a)
			}

			return nil
		}, nil
	case "decline":
		return func(ctx *rules.Context, _ *sip.Record) error {
			record(ctx)

			return rules.SilentNoop
		}, nil
	case "fail":
		return func(*rules.Context, *sip.Record) error { return errBoom }, nil
	case "generate":
		return func(_ *rules.Context, rec *sip.Record) error {
			rec.Code += "    %ModuleCode\n    int x;\n    %End\n"

			return nil
		}, nil
	default:
		return nil, rules.ErrUnknownAction
	}
}

func (r *resolver) Actions(rules.Stage) []string {
	return []string{"discard", "annotate", "decline", "fail", "generate"}
}

func (r *resolver) Builtin() []byte { return []byte(r.builtin) }

func mustRule(t *testing.T, stage rules.Stage, index int, action string, patterns ...string) *rules.Rule {
	t.Helper()

	h, err := newResolver().Resolve(stage, action, nil)
	require.NoError(t, err)

	r, err := rules.NewRule(stage, index, action, patterns, h)
	require.NoError(t, err)

	return r
}

func TestRuleMatchFunctionQualifiers(t *testing.T) {
	t.Parallel()

	sixth := mustRule(t, rules.StageFunction, 0, "discard", "Foo", "bar", ".*", ".*", ".*", "(?! const)")
	seventh := mustRule(t, rules.StageFunction, 1, "discard", ".*", ".*", ".*", ".*", ".*", "static .*", ".*")

	tests := []struct {
		name    string
		fields  []string
		sixth   bool
		seventh bool
	}{
		{name: "non-const", fields: []string{"Foo", "bar", "", "void", "int", "", ""}, sixth: true},
		{name: "const", fields: []string{"Foo", "bar", "", "void", "int", "", " const"}},
		{name: "pure", fields: []string{"Foo", "bar", "", "void", "int", "virtual ", " = 0"}},
		{name: "static", fields: []string{"Foo", "baz", "", "int", "", "static ", ""}, seventh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, err := sixth.Match(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.sixth, ok)

			ok, err = seventh.Match(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.seventh, ok)
		})
	}
}

func TestNewRuleValidation(t *testing.T) {
	t.Parallel()

	h := func(*rules.Context, *sip.Record) error { return nil }

	_, err := rules.NewRule(rules.StageVariable, 0, "x", []string{".*", ".*"}, h)
	require.ErrorIs(t, err, rules.ErrBadRule)

	_, err = rules.NewRule(rules.StageFunction, 0, "x", []string{".*", ".*", ".*", ".*"}, h)
	require.ErrorIs(t, err, rules.ErrBadRule)

	_, err = rules.NewRule(rules.StageTypedef, 0, "x", []string{".*", "(", ".*", ".*"}, h)
	require.ErrorIs(t, err, rules.ErrBadRule)

	_, err = rules.NewRule(rules.StageTypeCode, 0, "x", nil, h)
	require.ErrorIs(t, err, rules.ErrBadRule)
}

func TestApplyFirstMatchWins(t *testing.T) {
	t.Parallel()

	db := rules.NewDb()
	first := mustRule(t, rules.StageVariable, 0, "discard", ".*", "m_.*", ".*")
	second := mustRule(t, rules.StageVariable, 1, "discard", ".*", ".*", ".*")
	db.AddRule(first)
	db.AddRule(second)

	hits := rules.NewHits()
	ctx := &rules.Context{Stage: rules.StageVariable, Filename: "codec.h", Hits: hits}
	rec := sip.NewRecord("m_x")

	got, err := db.Apply(ctx, rec, "Codec", "m_x", "int")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.True(t, rec.Discarded())
	assert.Equal(t, "[0,discard]", ctx.Rule)
	assert.Equal(t, 1, hits.Rule(first))
	assert.Zero(t, hits.Rule(second))
}

func TestApplyNoMatch(t *testing.T) {
	t.Parallel()

	db := rules.NewDb()
	db.AddRule(mustRule(t, rules.StageTypedef, 0, "discard", ".*", "Foo", ".*", ".*"))

	rec := sip.NewRecord("Bar")

	got, err := db.Apply(&rules.Context{Stage: rules.StageTypedef}, rec, "x.h", "Bar", "", "int")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, rec.Discarded())
}

func TestApplySilentNoopContinues(t *testing.T) {
	t.Parallel()

	res := newResolver()
	db := rules.NewDb()

	for i, action := range []string{"decline", "annotate"} {
		h, err := res.Resolve(rules.StageContainer, action, []string{"Abstract"})
		require.NoError(t, err)

		r, err := rules.NewRule(rules.StageContainer, i, action, []string{".*", ".*", ".*", ".*", ".*"}, h)
		require.NoError(t, err)
		db.AddRule(r)
	}

	hits := rules.NewHits()
	rec := sip.NewRecord("Codec")

	got, err := db.Apply(&rules.Context{Stage: rules.StageContainer, Hits: hits}, rec, "KCodecs", "Codec", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "[1,annotate]", got.String())
	assert.Equal(t, []string{"decline[0,decline]", "annotate[1,annotate]"}, *res.calls)
	assert.True(t, rec.Annotations.Has("Abstract"))
	assert.Equal(t, 2, hits.Total())
}

func TestApplyHandlerError(t *testing.T) {
	t.Parallel()

	db := rules.NewDb()
	db.AddRule(mustRule(t, rules.StageUnexposed, 4, "fail", ".*", ".*", ".*"))

	_, err := db.Apply(&rules.Context{Stage: rules.StageUnexposed, Filename: "broken.h"}, sip.NewRecord("x"), "", "x", "")
	require.ErrorIs(t, err, errBoom)

	var herr *rules.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "[4,fail]", herr.Rule)
	assert.Equal(t, "broken.h", herr.Item)
}

const codecModule = `
module: KCodecs
headers: "KCodecs/.*"
function_rules:
  - ["KCodecs::Codec", "encode", ".*", ".*", ".*char.*&.*", discard]
  - match: ["Foo", "bar", ".*", ".*", ".*", "(?! const)"]
    action: discard
container_rules:
  - match: [".*", "Codec", ".*", ".*", ".*"]
    action: annotate
    args: [Abstract]
methodcode:
  KCodecs::Codec:
    value:
      code: |
        %MethodCode
            sipRes = 0;
        %End
      decl2: "int a"
typecode:
  KCodecs::Codec:
    code: |
      %ConvertToTypeCode
      %End
modulecode:
  kcodecs.h:
    action: generate
`

func TestParseModule(t *testing.T) {
	t.Parallel()

	m, err := rules.ParseModule("rules/kcodecs.yaml", []byte(codecModule), newResolver())
	require.NoError(t, err)

	assert.Equal(t, "KCodecs", m.Name)
	assert.False(t, m.Common())
	assert.True(t, m.Matches("KCodecs/codec.h"))
	assert.False(t, m.Matches("KConfig/kconfig.h"))
	assert.NotEmpty(t, m.Digest)

	fns := m.Db.Rules(rules.StageFunction)
	require.Len(t, fns, 2)
	assert.Equal(t, "[0,discard]", fns[0].String())
	assert.Equal(t, "KCodecs", fns[1].Module)

	containers := m.Db.Rules(rules.StageContainer)
	require.Len(t, containers, 1)
	assert.Equal(t, []string{"Abstract"}, containers[0].Args)
	assert.Len(t, m.Db.CodeEntries(), 3)
}

func TestParseModuleNameFromPath(t *testing.T) {
	t.Parallel()

	m, err := rules.ParseModule("rules/common.yaml", []byte("variable_rules: []\n"), newResolver())
	require.NoError(t, err)
	assert.Equal(t, "common", m.Name)
	assert.True(t, m.Common())
	assert.True(t, m.Matches("anything.h"))
}

func TestParseModuleErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		want    error
		message string
	}{
		{name: "unknown section", yaml: "functoin_rules: []\n", want: rules.ErrSchema},
		{name: "code and action", yaml: "typecode:\n  A:\n    code: x\n    action: generate\n", want: rules.ErrSchema},
		{name: "pattern count", yaml: "variable_rules:\n  - [a, discard]\n", want: rules.ErrBadRule},
		{name: "bad regex", yaml: "variable_rules:\n  - [a, '(', c, discard]\n", want: rules.ErrBadRule},
		{
			name:    "unknown action",
			yaml:    "variable_rules:\n  - [a, b, c, annotat]\n",
			want:    rules.ErrUnknownAction,
			message: `did you mean "annotate"?`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := rules.ParseModule("m.yaml", []byte(tt.yaml), newResolver())
			require.ErrorIs(t, err, tt.want)

			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestApplyCodeTables(t *testing.T) {
	t.Parallel()

	m, err := rules.ParseModule("kcodecs.yaml", []byte(codecModule), newResolver())
	require.NoError(t, err)

	hits := rules.NewHits()
	ctx := &rules.Context{Hits: hits, Filename: "KCodecs/kcodecs.h"}

	t.Run("methodcode", func(t *testing.T) {
		rec := sip.NewRecord("value")
		rec.FnResult = "int"
		rec.Parameters = []string{"int a", "Mode m = Encode"}

		e, err := m.Db.ApplyMethodCode(ctx, rec, "KCodecs::Codec", "value")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "[KCodecs::Codec,value]", e.String())
		assert.Equal(t, "%MethodCode\n    sipRes = 0;\n%End\n", rec.Code)
		assert.Equal(t, []string{"int a"}, rec.CxxParameters)
		assert.Equal(t, "int", rec.CxxFnResult)

		e, err = m.Db.ApplyMethodCode(ctx, sip.NewRecord("other"), "KCodecs::Codec", "other")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("typecode", func(t *testing.T) {
		rec := sip.NewRecord("Codec")
		rec.Code = "%TypeCode\n%End\n"

		_, mapped, err := m.Db.ApplyTypeCode(ctx, rec, "KCodecs::Codec")
		require.NoError(t, err)
		assert.True(t, mapped)
		assert.Equal(t, "%TypeCode\n%End\n%ConvertToTypeCode\n%End\n", rec.Code)
	})

	t.Run("modulecode", func(t *testing.T) {
		rec := sip.NewRecord("kcodecs.h")

		e, err := m.Db.ApplyModuleCode(ctx, rec, "KCodecs/kcodecs.h")
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "%ModuleCode\nint x;\n%End\n", rec.Code)

		e, err = m.Db.ApplyModuleCode(ctx, rec, "KCodecs/notkcodecs.h")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	assert.Equal(t, 3, hits.Total())
}

func TestIsMappedType(t *testing.T) {
	t.Parallel()

	assert.True(t, rules.IsMappedType("%TypeHeaderCode\n#include <a.h>\n%End\n"))
	assert.False(t, rules.IsMappedType("%ConvertToSubClassCode\n%End\n"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadRuleSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.ManifestName), `
package: PyKF5
source_root: include
includes: [qt]
compile_flags: "-DQT_CORE_LIB -Iextra"
omit: ".*_p\\.h"
modules: ["rules/*.yaml"]
`)
	writeFile(t, filepath.Join(dir, "rules", "a_common.yaml"), `
variable_rules:
  - [".*", "common", ".*", annotate]
`)
	writeFile(t, filepath.Join(dir, "rules", "b_kcodecs.yaml"), codecModule)

	res := newResolver()
	res.builtin = "variable_rules:\n  - ['.*', '.*', '.*', discard]\n"

	rs, err := rules.LoadRuleSet(dir, res)
	require.NoError(t, err)

	assert.Equal(t, "PyKF5", rs.Package)
	assert.Equal(t, filepath.Join(dir, "include"), rs.SourceRootDir())
	require.Len(t, rs.Modules, 2)
	assert.Len(t, rs.AllModules(), 3)

	flags := rs.Flags()
	assert.Equal(t, "1", flags.Defines["QT_CORE_LIB"])
	assert.Contains(t, flags.IncludePaths, filepath.Join(dir, "qt"))

	assert.Same(t, rs.Modules[1], rs.ModuleFor("KCodecs/codec.h"))
	assert.Nil(t, rs.ModuleFor("KConfig/kconfig.h"))

	db := rs.DbFor("KCodecs/codec.h")
	assert.Same(t, db, rs.DbFor("KCodecs/other.h"))

	vars := db.Rules(rules.StageVariable)
	require.Len(t, vars, 2)
	assert.Equal(t, "annotate", vars[0].Action)
	assert.Equal(t, "discard", vars[1].Action)
	assert.Len(t, db.Rules(rules.StageFunction), 2)
	assert.Empty(t, rs.DbFor("KConfig/kconfig.h").Rules(rules.StageFunction))

	omit, err := rs.Omitter("")
	require.NoError(t, err)

	ok, err := omit.MatchString("KCodecs/codec_p.h")
	require.NoError(t, err)
	assert.True(t, ok)

	hits := rules.NewHits()
	_, err = db.Apply(&rules.Context{Stage: rules.StageVariable, Hits: hits}, sip.NewRecord("x"), "Foo", "x", "int")
	require.NoError(t, err)

	usage := rs.Usage(hits)
	unused := rules.Unused(usage)
	assert.Len(t, usage, len(unused)+1)
	assert.Equal(t, "builtin", usage[len(usage)-1].Module)
}

func TestLoadRuleSetMissing(t *testing.T) {
	t.Parallel()

	_, err := rules.LoadRuleSet(t.TempDir(), newResolver())
	require.ErrorIs(t, err, rules.ErrNoManifest)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.ManifestName), "package: PyKF5\nsource_root: include\nmodules: [\"rules/*.yaml\"]\n")
	writeFile(t, filepath.Join(dir, "rules", "a.yaml"), "variable_rules:\n  - [\".*\", \"x\", \".*\", dscard]\n")
	writeFile(t, filepath.Join(dir, "rules", "b.yaml"), "variable_rules:\n  - [\"(\", \"x\", \".*\", discard]\n")
	writeFile(t, filepath.Join(dir, "rules", "c.yaml"), "variable_rules:\n  - [\".*\", \"x\", \".*\", discard]\n")

	rs, problems := rules.Check(dir, newResolver())
	assert.Nil(t, rs)
	require.Len(t, problems, 2)
	require.ErrorIs(t, problems[0], rules.ErrUnknownAction)
	assert.Contains(t, problems[0].Error(), `did you mean "discard"?`)
	require.ErrorIs(t, problems[1], rules.ErrBadRule)

	require.NoError(t, os.Remove(filepath.Join(dir, "rules", "a.yaml")))
	require.NoError(t, os.Remove(filepath.Join(dir, "rules", "b.yaml")))

	rs, problems = rules.Check(dir, newResolver())
	assert.Empty(t, problems)
	require.NotNil(t, rs)
	assert.Len(t, rs.Modules, 1)
}

func TestCheckBadSelector(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, rules.ManifestName), "package: PyKF5\nsource_root: include\nselect: \"(\"\n")

	rs, problems := rules.Check(dir, newResolver())
	assert.Nil(t, rs)
	require.Len(t, problems, 1)
}

func TestSelectorSearchesPath(t *testing.T) {
	t.Parallel()

	rs := rules.NewRuleSet(rules.Manifest{Package: "PyKF5", Omit: "KDELibs4Support"}, t.TempDir(), nil, nil)

	tests := []struct {
		name     string
		override string
		path     string
		selected bool
		omitted  bool
	}{
		{"default selects all", "", "KCodecs/codec.h", true, false},
		{"directory prefix", "KFoo/", "KFoo/foo.h", true, false},
		{"directory prefix misses peers", "KFoo/", "KBar/bar.h", false, false},
		{"manifest omit inside path", "", "KDELibs4Support/kdialog.h", true, true},
		{"anchor still honoured", "^KBar", "x/KBar/bar.h", false, false},
	}

	omitter, err := rs.Omitter("")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			selector, err := rs.Selector(tt.override)
			require.NoError(t, err)

			selected, err := selector.MatchString(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.selected, selected)

			omitted, err := omitter.MatchString(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.omitted, omitted)
		})
	}
}
