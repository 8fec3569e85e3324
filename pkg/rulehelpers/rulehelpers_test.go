package rulehelpers_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

const storeHeader = `#include <QList>

namespace KFoo {

class StoreException : public std::runtime_error
{
};

class Store
{
public:
    enum Mode { Fast, Safe };

    QList<int> values(const QMap<QString, int> &map) const;
    virtual void setValues(const QList<int> &values);
    static int count(Mode m = Fast);

    char buffer[16];
    const char tags[];
};

typedef QMap<QString, int> Table;

}

static int table[4];
`

func parse(t *testing.T) *cxxast.TranslationUnit {
	t.Helper()

	p := cxxast.NewParser(nil, nil, nil)

	tu, err := p.Parse(context.Background(), "/src/KFoo/store.h", []byte(storeHeader), cxxast.Flags{})
	require.NoError(t, err)
	t.Cleanup(tu.Close)

	return tu
}

func find(t *testing.T, c cxxast.Cursor, kind cxxast.Kind, spelling string) cxxast.Cursor {
	t.Helper()

	for child := range c.Children() {
		if child.Kind() == kind && child.Spelling() == spelling {
			return child
		}
	}

	require.Failf(t, "cursor not found", "%s %q", kind, spelling)

	return nil
}

type fixture struct {
	tu    *cxxast.TranslationUnit
	ns    cxxast.Cursor
	store cxxast.Cursor
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	tu := parse(t)
	ns := find(t, tu, cxxast.KindNamespace, "KFoo")

	return fixture{tu: tu, ns: ns, store: find(t, ns, cxxast.KindClass, "Store")}
}

func handler(t *testing.T, stage rules.Stage, action string, args ...string) rules.Handler {
	t.Helper()

	h, err := rulehelpers.Default().Resolve(stage, action, args)
	require.NoError(t, err)

	return h
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := rulehelpers.Default()

	tests := []struct {
		name   string
		stage  rules.Stage
		action string
		args   []string
		want   error
	}{
		{"known", rules.StageParameter, "parameter_in", nil, nil},
		{"unknown", rules.StageParameter, "parameter_inn", nil, rules.ErrUnknownAction},
		{"wrong stage", rules.StageContainer, "parameter_in", nil, rulehelpers.ErrStage},
		{"too few args", rules.StageVariable, "annotate", nil, rulehelpers.ErrArgs},
		{"too many args", rules.StageParameter, "set_init", []string{"a", "b"}, rulehelpers.ErrArgs},
		{"unlimited args", rules.StageModuleCode, "module_add_imports", []string{"a", "b", "c"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, err := reg.Resolve(tt.stage, tt.action, tt.args)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestRegistryDuplicate(t *testing.T) {
	t.Parallel()

	r := rulehelpers.NewRegistry()
	d := rulehelpers.Descriptor{Name: "x", Stages: rules.MatchStages()}
	noop := func([]string) (rules.Handler, error) { return nil, nil }

	require.NoError(t, r.Register(d, noop))
	require.ErrorIs(t, r.Register(d, noop), rulehelpers.ErrDuplicateAction)
	assert.Len(t, r.All(), 1)
}

func TestRegistryActionsPerStage(t *testing.T) {
	t.Parallel()

	reg := rulehelpers.Default()

	assert.Contains(t, reg.Actions(rules.StageParameter), "parameter_transfer_to_parent")
	assert.Contains(t, reg.Actions(rules.StageForwardDeclaration), "container_mark_forward_declaration_external")
	assert.Contains(t, reg.Actions(rules.StageTypeCode), "typecode_cfttc_dict")
	assert.NotContains(t, reg.Actions(rules.StageFunction), "parameter_in")

	for _, stage := range rules.MatchStages() {
		assert.Contains(t, reg.Actions(stage), "discard", stage.String())
		assert.Contains(t, reg.Actions(stage), stage.String()+"_discard", stage.String())
	}

	for _, stage := range []rules.Stage{rules.StageMethodCode, rules.StageTypeCode, rules.StageModuleCode} {
		assert.Contains(t, reg.Actions(stage), "discard", stage.String())
		assert.Contains(t, reg.Actions(stage), "noop", stage.String())
	}
}

func TestBuiltinRulesLoad(t *testing.T) {
	t.Parallel()

	reg := rulehelpers.Default()

	m, err := rules.ParseModule("builtin.yaml", reg.Builtin(), reg)
	require.NoError(t, err)

	assert.Equal(t, "builtin", m.Name)
	assert.Len(t, m.Db.Rules(rules.StageContainer), 2)
	assert.Len(t, m.Db.Rules(rules.StageFunction), 2)
	assert.Len(t, m.Db.Rules(rules.StageVariable), 5)
}

func TestRecordEdits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stage  rules.Stage
		action string
		args   []string
		before sip.Record
		check  func(t *testing.T, rec *sip.Record)
	}{
		{
			name:   "discard",
			stage:  rules.StageTypedef,
			action: "typedef_discard",
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.True(t, rec.Discarded()) },
		},
		{
			name:   "annotate",
			stage:  rules.StageParameter,
			action: "annotate",
			args:   []string{"Out", "KeepReference"},
			check: func(t *testing.T, rec *sip.Record) {
				t.Helper()
				assert.Equal(t, []string{"Out", "KeepReference"}, rec.Annotations.Items())
			},
		},
		{
			name:   "replace in decl",
			stage:  rules.StageParameter,
			action: "replace_in_decl",
			args:   []string{"qint64", "long long"},
			before: sip.Record{Decl: "qint64 size"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "long long size", rec.Decl) },
		},
		{
			name:   "mode_t",
			stage:  rules.StageParameter,
			action: "param_rewrite_mode_t_as_int",
			before: sip.Record{Decl: "mode_t mode"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "unsigned int mode", rec.Decl) },
		},
		{
			name:   "class enum",
			stage:  rules.StageParameter,
			action: "parameter_strip_class_enum",
			before: sip.Record{Decl: "enum class Mode mode"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "Mode mode", rec.Decl) },
		},
		{
			name:   "remove default",
			stage:  rules.StageParameter,
			action: "parameter_remove_default",
			before: sip.Record{Init: "nullptr"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Empty(t, rec.Init) },
		},
		{
			name:   "qualify from type",
			stage:  rules.StageParameter,
			action: "parameter_qualify_enum_initialiser",
			before: sip.Record{Decl: "KFoo::Mode m", Init: "Fast | Safe"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "KFoo::Fast | KFoo::Safe", rec.Init) },
		},
		{
			name:   "qualify from args",
			stage:  rules.StageParameter,
			action: "parameter_qualify_enum_initialiser",
			args:   []string{"KFoo::Store"},
			before: sip.Record{Decl: "int m", Init: "Fast"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "KFoo::Store::Fast", rec.Init) },
		},
		{
			name:   "qualify keeps literals",
			stage:  rules.StageParameter,
			action: "parameter_qualify_enum_initialiser",
			args:   []string{"KFoo"},
			before: sip.Record{Decl: "bool b", Init: "true"},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, "true", rec.Init) },
		},
		{
			name:   "templated bases",
			stage:  rules.StageContainer,
			action: "container_discard_templated_bases",
			before: sip.Record{BaseSpecifiers: []string{"QObject", "QSharedData", "KFoo::Base<int>"}},
			check: func(t *testing.T, rec *sip.Record) {
				t.Helper()
				assert.Equal(t, []string{"QObject", "QSharedData"}, rec.BaseSpecifiers)
			},
		},
		{
			name:   "shared data base",
			stage:  rules.StageContainer,
			action: "container_discard_QSharedData_base",
			before: sip.Record{BaseSpecifiers: []string{"QObject", "QSharedData"}},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.Equal(t, []string{"QObject"}, rec.BaseSpecifiers) },
		},
		{
			name:   "non const discarded",
			stage:  rules.StageFunction,
			action: "function_discard_non_const",
			before: sip.Record{Suffix: ""},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.True(t, rec.Discarded()) },
		},
		{
			name:   "const kept",
			stage:  rules.StageFunction,
			action: "function_discard_non_const",
			before: sip.Record{Suffix: sip.SuffixConst},
			check:  func(t *testing.T, rec *sip.Record) { t.Helper(); assert.False(t, rec.Discarded()) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := sip.NewRecord("item")
			rec.Decl, rec.Init, rec.Suffix = tt.before.Decl, tt.before.Init, tt.before.Suffix
			rec.BaseSpecifiers = tt.before.BaseSpecifiers

			h := handler(t, tt.stage, tt.action, tt.args...)
			require.NoError(t, h(&rules.Context{Stage: tt.stage, Rule: "[0," + tt.action + "]"}, rec))
			tt.check(t, rec)
		})
	}
}

func TestSilentNoopDeclines(t *testing.T) {
	t.Parallel()

	h := handler(t, rules.StageFunction, "silent_noop")
	err := h(&rules.Context{}, sip.NewRecord("f"))
	assert.True(t, errors.Is(err, rules.SilentNoop))
}

func TestTransferToParent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler(t, rules.StageParameter, "parameter_transfer_to_parent")

	tests := []struct {
		function string
		want     string
	}{
		{"count", "Transfer"},
		{"setValues", "TransferThis"},
	}

	for _, tt := range tests {
		fn, ok := find(t, f.store, cxxast.KindMethod, tt.function).(*cxxast.Function)
		require.True(t, ok)

		rec := sip.NewRecord("p")
		require.NoError(t, h(&rules.Context{Function: fn}, rec))
		assert.Equal(t, []string{tt.want}, rec.Annotations.Items(), tt.function)
	}
}

func TestAddTypedefsIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler(t, rules.StageContainer, "container_add_typedefs", "QList<int>", "QMap<QString, int>")
	ctx := &rules.Context{Stage: rules.StageContainer, Item: f.store, Rule: "[0,container_add_typedefs]"}

	rec := sip.NewRecord("Store")
	rec.Body = "    QList<int> values(const QMap<QString, int> &map) const;\n"

	require.NoError(t, h(ctx, rec))
	assert.Equal(t, "    __Store0_t values(const __Store1_t &map) const;\n", rec.Body)
	assert.Contains(t, rec.Code, "%TypeHeaderCode\n    typedef QList<int> __Store0_t;\n    typedef QMap<QString, int> __Store1_t;\n%End\n")

	code := rec.Code
	require.NoError(t, h(ctx, rec))
	assert.Equal(t, code, rec.Code)
}

func TestContainerBoilerplate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := &rules.Context{Stage: rules.StageContainer, Item: f.store, Rule: "[1,x]"}

	rec := sip.NewRecord("Store")
	require.NoError(t, handler(t, rules.StageContainer, "container_fake_derived_class")(ctx, rec))
	assert.Contains(t, rec.Code, "%TypeHeaderCode\n#define sipKFoo_Store KFoo::Store\n%End\n")

	require.NoError(t, handler(t, rules.StageContainer, "container_make_unassignable")(ctx, rec))
	assert.Contains(t, rec.Body, "KFoo::Store &operator=(const KFoo::Store &);")

	require.NoError(t, handler(t, rules.StageContainer, "container_make_uncopyable")(ctx, rec))
	assert.Contains(t, rec.Body, "Store(const Store &);")
}

func TestDuplicatePtrTypedef(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	table := find(t, f.ns, cxxast.KindTypedef, "Table")
	h := handler(t, rules.StageTypedef, "typedef_discard_duplicate_ptr")

	rec := sip.NewRecord("Table")
	require.NoError(t, h(&rules.Context{Item: table, Filename: "KFoo/store.h"}, rec))
	assert.True(t, rec.Discarded())
}

func TestModuleCodeHelpers(t *testing.T) {
	t.Parallel()

	ctx := &rules.Context{Stage: rules.StageModuleCode, Filename: "KFoo/KFoomod.sip", Rule: "[KFoomod.sip]"}

	assert.Equal(t, "KFoo_KFoomod", rulehelpers.Feature(ctx.Filename))

	rec := sip.NewRecord("KFoomod.sip")
	rec.ModuleCode.Set("QList<int>", "%MappedType QList<int>\n{\n};\n")
	rec.ModuleCode.Set("QMap<int, int>", "%MappedType QMap<int, int>\n{\n};\n")
	rec.Decl = "%Module(name=KFoo)\n%Import(name=QtCore/QtCoremod.sip)\n%Import(name=QtGui/QtGuimod.sip)\n"

	require.NoError(t, handler(t, rules.StageModuleCode, "modulecode_delete", "QList<int>")(ctx, rec))
	code, ok := rec.ModuleCode.Get("QList<int>")
	require.True(t, ok)
	assert.Equal(t, "// Discarded QList<int> (by [KFoomod.sip])\n", code)

	require.NoError(t, handler(t, rules.StageModuleCode, "modulecode_make_local", "QMap<int, int>")(ctx, rec))
	code, _ = rec.ModuleCode.Get("QMap<int, int>")
	assert.Contains(t, code, "%If (!KFoo_KFoomod)\n%MappedType QMap<int, int>\n")

	require.NoError(t, handler(t, rules.StageModuleCode, "module_delete_imports", "QtGui/QtGuimod.sip")(ctx, rec))
	assert.Contains(t, rec.Decl, "// %Import(name=QtGui/QtGuimod.sip)")
	assert.Contains(t, rec.Decl, "\n%Import(name=QtCore/QtCoremod.sip)\n")

	require.NoError(t, handler(t, rules.StageModuleCode, "module_add_includes", "<QString>")(ctx, rec))
	assert.Contains(t, rec.Code, "%ModuleHeaderCode\n#include <QString>\n%End\n")
}

func TestCategorise(t *testing.T) {
	t.Parallel()

	isEnum := func(t string) bool { return t == "KFoo::Mode" }

	tests := []struct {
		cxxT string
		want rulehelpers.Category
	}{
		{"void", rulehelpers.Void},
		{"int", rulehelpers.Integer},
		{"unsigned long", rulehelpers.Integer},
		{"const qint64 &", rulehelpers.Integer},
		{"double", rulehelpers.Float},
		{"char", rulehelpers.Byte},
		{"char *", rulehelpers.Pointer},
		{"KFoo::Mode", rulehelpers.Integer},
		{"QPoint", rulehelpers.Object},
		{"const QList<int> &", rulehelpers.Object},
		{"QObject *", rulehelpers.Pointer},
	}

	for _, tt := range tests {
		t.Run(tt.cxxT, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, rulehelpers.Categorise(tt.cxxT, isEnum))
		})
	}
}

func TestHeldAsSipType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sipType_KFoo_Store", rulehelpers.NewHeldAs("KFoo::Store *", nil).SipT)
	assert.Equal(t, "INTEGER", rulehelpers.NewHeldAs("int *", nil).SipT)

	mapped := rulehelpers.NewHeldAs("QList<int>", nil)
	assert.True(t, mapped.Mapped)
	assert.Contains(t, mapped.Declare("value", "return 0;", false, true), `const char *cxxvalueS = "QList<int>";`)
}

func TestStdExceptionRewrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	exc := find(t, f.ns, cxxast.KindClass, "StoreException")
	ctx := &rules.Context{Stage: rules.StageContainer, Item: exc, Container: f.ns, Rule: "[0,container_rewrite_std_exception]"}

	rec := sip.NewRecord("StoreException")
	rec.BaseSpecifiers = []string{"std::runtime_error"}

	require.NoError(t, handler(t, rules.StageContainer, "container_rewrite_std_exception")(ctx, rec))

	assert.Equal(t, "%Exception KFoo::StoreException(std::runtime_error) /PyName=KFooStoreException/", rec.Decl)
	assert.Empty(t, rec.BaseSpecifiers)
	assert.Contains(t, rec.Body, "PyErr_SetString(sipException_KFoo_StoreException, detail);")

	std, ok := rec.ModuleCode.Get("std::runtime_error")
	require.True(t, ok)
	assert.Contains(t, std, "%Exception std::runtime_error(SIP_Exception) /PyName=StdRuntimeError/\n")
	assert.Contains(t, std, "sipException_std_runtime_error")
}

func TestStdExceptionDeclinesOtherBases(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := sip.NewRecord("Store")
	rec.BaseSpecifiers = []string{"QObject"}

	err := handler(t, rules.StageContainer, "container_rewrite_std_exception")(&rules.Context{Item: f.store}, rec)
	require.ErrorIs(t, err, rules.SilentNoop)
}

func TestFunctionUsesTemplates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	h := handler(t, rules.StageFunction, "function_uses_templates")

	t.Run("object result", func(t *testing.T) {
		t.Parallel()

		fn := find(t, f.store, cxxast.KindMethod, "values")
		rec := sip.NewRecord("values")
		rec.FnResult = "QList<int>"
		rec.Parameters = []string{"const QMap<QString, int> &map /In/"}
		rec.Suffix = sip.SuffixConst

		require.NoError(t, h(&rules.Context{Stage: rules.StageFunction, Item: fn, Container: f.store, Rule: "[0,function_uses_templates]"}, rec))

		assert.Equal(t, []string{"const QMap<QString, int> &a0 /In/"}, rec.Parameters)
		assert.Equal(t, []string{"const QMap<QString, int> &a0"}, rec.CxxParameters)
		assert.Equal(t, "QList<int>", rec.CxxFnResult)
		assert.Equal(t, "QList<int> *", rec.FnResult)
		assert.Contains(t, rec.Code, "%MethodCode\n")
		assert.Contains(t, rec.Code, "    cxxvalue = sipCpp->values(*a0);\n")
		assert.Contains(t, rec.Code, "    sipRes = new CxxvalueT(cxxvalue);\n")
		assert.NotContains(t, rec.Code, "%VirtualCatcherCode")

		code := rec.Code
		require.NoError(t, h(&rules.Context{Item: fn}, rec))
		assert.Equal(t, code, rec.Code)
	})

	t.Run("virtual", func(t *testing.T) {
		t.Parallel()

		fn := find(t, f.store, cxxast.KindMethod, "setValues")
		rec := sip.NewRecord("setValues")
		rec.FnResult = "void"
		rec.Parameters = []string{"const QList<int> &values"}

		require.NoError(t, h(&rules.Context{Item: fn, Container: f.store, Rule: "[1,function_uses_templates]"}, rec))

		assert.Contains(t, rec.Code, "sipSelfWasArg ? sipCpp->KFoo::Store::setValues(*a0) : sipCpp->setValues(*a0);\n")
		assert.Contains(t, rec.Code, "%VirtualCatcherCode\n")
		assert.Contains(t, rec.Code, `sipCallMethod(&sipIsErr, sipMethod, "N", new QList<int>(cxxa0), gena0T, NULL, NULL);`)
		assert.NotContains(t, rec.Code, "sipParseResult")
	})

	t.Run("signals untouched", func(t *testing.T) {
		t.Parallel()

		fn := find(t, f.store, cxxast.KindMethod, "setValues")
		rec := sip.NewRecord("setValues")
		rec.IsSignal = true
		rec.Parameters = []string{"const QList<int> &values"}

		require.NoError(t, h(&rules.Context{Item: fn}, rec))
		assert.Empty(t, rec.Code)
		assert.Equal(t, []string{"const QList<int> &values"}, rec.Parameters)
	})
}

func TestVariableRewrites(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("member byte array", func(t *testing.T) {
		t.Parallel()

		v := find(t, f.store, cxxast.KindField, "buffer")
		rec := sip.NewRecord("buffer")
		rec.Decl = "char [16]"

		require.NoError(t, handler(t, rules.StageVariable, "variable_rewrite_array_fixed")(&rules.Context{Item: v, Rule: "[3,x]"}, rec))
		assert.Equal(t, "SIP_PYBUFFER", rec.Decl)
		assert.Contains(t, rec.Code, "Py_ssize_t elementCount = 16;")
		assert.Contains(t, rec.Code, "(char *)&sipCpp->buffer[0]")
	})

	t.Run("member unsized const array", func(t *testing.T) {
		t.Parallel()

		v := find(t, f.store, cxxast.KindField, "tags")
		rec := sip.NewRecord("tags")
		rec.Decl = "const char []"

		require.NoError(t, handler(t, rules.StageVariable, "variable_rewrite_array_nonfixed")(&rules.Context{Item: v}, rec))
		assert.Equal(t, "const char *", rec.Decl)
		assert.True(t, rec.Annotations.Has("NoSetter"))
	})

	t.Run("file scope static array", func(t *testing.T) {
		t.Parallel()

		v := find(t, f.tu, cxxast.KindVariable, "table")
		rec := sip.NewRecord("table")
		rec.Decl = "static int [4]"

		require.NoError(t, handler(t, rules.StageVariable, "variable_rewrite_static")(&rules.Context{Item: v}, rec))
		assert.Equal(t, "int *", rec.Decl)
		assert.Empty(t, rec.Code)
	})

	t.Run("mapped member", func(t *testing.T) {
		t.Parallel()

		v := find(t, f.store, cxxast.KindField, "buffer")
		rec := sip.NewRecord("buffer")
		rec.Decl = "QList<int>"

		require.NoError(t, handler(t, rules.StageVariable, "variable_rewrite_mapped")(&rules.Context{Item: v, Rule: "[2,x]"}, rec))
		assert.Contains(t, rec.Code, "%GetCode\n")
		assert.Contains(t, rec.Code, "&sipCpp->buffer;")
		assert.Contains(t, rec.Code, "sipCpp->buffer = *cxxvalue;")
	})
}

func TestMappedTypes(t *testing.T) {
	t.Parallel()

	ctx := &rules.Context{Stage: rules.StageParameter, Filename: "KFoo/store.h", Rule: "[0,list_parameter]"}

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		rec := sip.NewRecord("items")
		rec.Decl = "const QList<KFoo::Item> &items"

		require.NoError(t, handler(t, rules.StageParameter, "list_parameter")(ctx, rec))

		code, ok := rec.ModuleCode.Get("QList<KFoo::Item>")
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(code, "%MappedType QList<KFoo::Item>\n{\n"))
		assert.Contains(t, code, "#include <QList>")
		assert.Contains(t, code, "sipCpp->at(i)")
		assert.Contains(t, code, "const sipTypeDef *genvalueT = sipType_KFoo_Item;")
	})

	for _, header := range []string{"<QtCore/QHash>", "QtCore/QHash", `"QtCore/QHash"`} {
		t.Run("dict with header "+header, func(t *testing.T) {
			t.Parallel()

			rec := sip.NewRecord("map")
			rec.Decl = "const QHash<QString, int> &map"

			require.NoError(t, handler(t, rules.StageParameter, "dict_parameter", header)(ctx, rec))

			code, ok := rec.ModuleCode.Get("QHash<QString, int>")
			require.True(t, ok)
			assert.Contains(t, code, "#include <QtCore/QHash>\n")
			assert.NotContains(t, code, "<<")
			assert.NotContains(t, code, `"QtCore`)
			assert.Contains(t, code, "i.key()")
			assert.Contains(t, code, "PyLong_FromLong((long)i.value())")
		})
	}

	t.Run("wrong shape declines", func(t *testing.T) {
		t.Parallel()

		rec := sip.NewRecord("items")
		rec.Decl = "const QList<int> &items"

		err := handler(t, rules.StageParameter, "qpair_parameter")(ctx, rec)
		require.ErrorIs(t, err, rules.SilentNoop)
		assert.Zero(t, rec.ModuleCode.Len())
	})

	t.Run("typecode", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		table := find(t, f.ns, cxxast.KindTypedef, "Table")
		rec := sip.NewRecord("Table")

		require.NoError(t, handler(t, rules.StageTypeCode, "typecode_cfttc_dict")(&rules.Context{Item: table, Rule: "[KFoo::Table]"}, rec))
		assert.True(t, rules.IsMappedType(rec.Code))
		assert.Contains(t, rec.Code, "QMap<CxxkeyT, CxxvalueT> *dict = new QMap<CxxkeyT, CxxvalueT>();")
	})
}
