package rulehelpers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// Variable helpers see the declared type in rec.Decl, storage class
// included: "static const char [5]".

var (
	fixedDims    = regexp.MustCompile(`\[([^\]]+)\]`)
	anyDims      = regexp.MustCompile(`\[.*\]`)
	nonfixedDims = regexp.MustCompile(`\[\]`)
)

// accessor is the C++ expression naming the variable inside %GetCode and
// %SetCode.
func accessor(ctx *rules.Context, static bool) string {
	name := ctx.Item.Spelling()

	switch {
	case atFileScope(ctx.Item.Parent()):
		return cxxast.QualifiedName(ctx.Item)
	case static:
		return cxxast.QualifiedName(ctx.Item.Parent()) + "::" + name
	default:
		return "sipCpp->" + name
	}
}

// rewriteVariable picks the rewrite for a declaration without storage
// class keywords SIP rejects.
func rewriteVariable(ctx *rules.Context, rec *sip.Record) error {
	switch {
	case strings.Contains(rec.Decl, "<"):
		return variableRewriteMapped(ctx, rec)
	case fixedDims.MatchString(rec.Decl):
		return variableRewriteArrayFixed(ctx, rec)
	case nonfixedDims.MatchString(rec.Decl):
		return variableRewriteArrayNonfixed(ctx, rec)
	default:
		return nil
	}
}

func variableRewriteExtern(ctx *rules.Context, rec *sip.Record) error {
	rec.Decl = strings.TrimPrefix(rec.Decl, "extern ")

	return rewriteVariable(ctx, rec)
}

// variableRewriteStatic drops "static" from file scope variables, which
// SIP reads as globals anyway. Static members keep it.
func variableRewriteStatic(ctx *rules.Context, rec *sip.Record) error {
	if !atFileScope(ctx.Item.Parent()) {
		return rewriteVariable(ctx, rec)
	}

	rec.Decl = strings.TrimPrefix(rec.Decl, "static ")

	switch {
	case fixedDims.MatchString(rec.Decl):
		return variableRewriteArrayFixed(ctx, rec)
	case nonfixedDims.MatchString(rec.Decl):
		return variableRewriteArrayNonfixed(ctx, rec)
	default:
		return nil
	}
}

type mappedVariable struct {
	Trace string
	Value Converter
	Cxx   string
}

// variableRewriteMapped accesses a variable of template type through
// %GetCode and %SetCode.
func variableRewriteMapped(ctx *rules.Context, rec *sip.Record) error {
	prefixes, typ, ops, _ := sip.DecomposeType(rec.Decl)
	static := strings.Contains(prefixes, "static ")
	cxxT := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(prefixes, "static ", ""), "extern ", "") + typ + " " + ops)

	code, err := render("mapped", mappedVariable{
		Trace: sip.GeneratedFor(ctx.Describe(), ctx.Rule, "mapped variable"),
		Value: Converter{HeldAs: NewHeldAs(cxxT, isEnumIn(ctx)), conv: variableConversions},
		Cxx:   accessor(ctx, static),
	})
	if err != nil {
		return err
	}

	rec.Code += code

	return nil
}

type arrayVariable struct {
	Trace        string
	Value        Converter
	Cxx          string
	Name         string
	Dims         string
	ElementCount string
}

func elementCount(dims []string) string {
	product := 1

	for _, d := range dims {
		n, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return "(" + strings.Join(dims, ") * (") + ")"
		}

		product *= n
	}

	return strconv.Itoa(product)
}

// variableRewriteArrayFixed exposes "T name[N]..." as a bytearray when T
// is a byte and as a nested list otherwise. At file scope a single
// dimension decays to a pointer instead.
func variableRewriteArrayFixed(ctx *rules.Context, rec *sip.Record) error {
	var dims []string
	for _, m := range fixedDims.FindAllStringSubmatch(rec.Decl, -1) {
		dims = append(dims, m[1])
	}

	if atFileScope(ctx.Item.Parent()) {
		if len(dims) == 1 {
			rec.Decl = anyDims.ReplaceAllString(rec.Decl, "*")
		}

		return nil
	}

	prefixes, typ, ops, _ := sip.DecomposeType(rec.Decl)
	static := strings.Contains(prefixes, "static ")
	elemT := strings.TrimSpace(strings.TrimPrefix(strings.ReplaceAll(prefixes, "static ", ""), "const ") + typ + " " + ops)
	value := NewHeldAs(elemT, isEnumIn(ctx))

	data := arrayVariable{
		Trace:        sip.GeneratedFor(ctx.Describe(), ctx.Rule, "fixed array"),
		Value:        Converter{HeldAs: value, conv: arrayConversions},
		Cxx:          accessor(ctx, static),
		Name:         ctx.Item.Spelling(),
		ElementCount: elementCount(dims),
	}

	storage := ""
	if static {
		storage = "static "
	}

	tmpl := "pylist"
	rec.Decl = storage + "SIP_PYLIST"

	if value.Category == Byte {
		tmpl = "pybuffer"
		rec.Decl = storage + "SIP_PYBUFFER"
	} else {
		casts := make([]string, len(dims))
		for i, d := range dims {
			casts[i] = "(Py_ssize_t)" + strings.TrimSpace(d)
		}

		data.Dims = strings.Join(casts, ", ")
	}

	code, err := render(tmpl, data)
	if err != nil {
		return err
	}

	rec.Code += code

	return nil
}

// variableRewriteArrayNonfixed turns "T name[]" into a pointer. Const
// arrays lose their setter.
func variableRewriteArrayNonfixed(_ *rules.Context, rec *sip.Record) error {
	if len(nonfixedDims.FindAllString(rec.Decl, -1)) != 1 {
		return nil
	}

	rec.Decl = strings.TrimSpace(nonfixedDims.ReplaceAllString(rec.Decl, "*"))
	if strings.Contains(rec.Decl, "const ") {
		rec.Annotations.Add("NoSetter")
	}

	return nil
}

func registerVariables(r *Registry) {
	for _, v := range []struct {
		name, desc string
		h          rules.Handler
	}{
		{"variable_rewrite_extern", "drop extern and rewrite what SIP cannot declare", variableRewriteExtern},
		{"variable_rewrite_static", "drop file scope static and rewrite what SIP cannot declare", variableRewriteStatic},
		{"variable_rewrite_mapped", "access a template typed variable through code", variableRewriteMapped},
		{"variable_rewrite_array_fixed", "expose a fixed array as a list or buffer", variableRewriteArrayFixed},
		{"variable_rewrite_array_nonfixed", "expose an unsized array as a pointer", variableRewriteArrayNonfixed},
	} {
		r.MustRegister(Descriptor{Name: v.name, Description: v.desc, Stages: variableStage}, fixed(v.h))
	}
}
