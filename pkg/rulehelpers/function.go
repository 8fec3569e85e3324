package rulehelpers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

var (
	annotationGroup = regexp.MustCompile(`\s*/[^/]*/`)
	typeThenName    = regexp.MustCompile(`^(.*[ >&*])([A-Za-z_][A-Za-z_0-9]*)$`)
)

// parameter is one rendered parameter taken apart again.
type parameter struct {
	typ         string
	name        string
	annotations string
	init        string
}

func parseParameter(text string) parameter {
	var p parameter

	for _, a := range annotationGroup.FindAllString(text, -1) {
		p.annotations += " " + strings.TrimSpace(a)
	}

	decl := annotationGroup.ReplaceAllString(text, "")
	if before, after, ok := strings.Cut(decl, " = "); ok {
		decl, p.init = before, strings.TrimSpace(after)
	}

	decl = strings.TrimSpace(decl)
	// "unsigned int" is a type without a name.
	if m := typeThenName.FindStringSubmatch(decl); m != nil && Categorise(m[2], nil) == Object {
		p.typ, p.name = strings.TrimSpace(m[1]), m[2]
	} else {
		p.typ = decl
	}

	return p
}

func (p parameter) render(name string, annotated bool) string {
	s := p.typ
	if !strings.HasSuffix(s, "*") && !strings.HasSuffix(s, "&") && !strings.HasSuffix(s, ">") {
		s += " "
	}

	s += name
	if annotated {
		s += p.annotations
	}

	if p.init != "" {
		s += " = " + p.init
	}

	return s
}

type methodCode struct {
	Trace       string
	Pure        bool
	Constructor bool
	SipClass    string
	Args        string
	Void        bool
	Call        string
	ValueT      string
	Ref         bool
	Result      string
}

type catcherParam struct {
	Name    string
	Declare string
	Arg     string
}

type virtualCatcher struct {
	Trace        string
	Params       []catcherParam
	Encodings    string
	Void         bool
	Result       string
	ResultFormat string
}

// catcherArg is the sipCallMethod encoding and arguments passing cxx<name>
// to Python.
func catcherArg(h HeldAs, name string) (enc, arg string) {
	category := h.Category
	value := "cxx" + name

	if h.pointsToPrimitive() {
		category, value = Category(h.SipT), "*cxx"+name
	}

	switch category {
	case Byte:
		return "c", "(char)" + value
	case Integer:
		return "n", "(long long)" + value
	case Float:
		return "d", "(double)" + value
	case Pointer:
		return "D", value + ", gen" + name + "T, NULL"
	default:
		return "N", "new " + h.BaseT + "(" + value + "), gen" + name + "T, NULL"
	}
}

func resultFormat(h HeldAs) string {
	switch h.Category {
	case Integer:
		return `"i"`
	case Float:
		return `"d"`
	case Byte:
		return `"c"`
	default:
		return `"H0", genresultT`
	}
}

// callsite is the indented statement calling the C++ function, with
// assign prefixed to the call expression.
func callsite(fn cxxast.Cursor, static, virtual bool, assign, wrapL, wrapR, args string) string {
	name := fn.Spelling()
	line := func(expr string) string {
		return "    " + assign + wrapL + expr + wrapR + ";\n"
	}

	if static {
		return line(cxxast.QualifiedName(fn) + "(" + args + ")")
	}

	direct := "sipCpp->" + name + "(" + args + ")"
	if virtual {
		direct = "sipSelfWasArg ? sipCpp->" + cxxast.QualifiedName(fn) + "(" + args + ") : " + direct
	}

	if fn.Access() != cxxast.AccessProtected {
		return line(direct)
	}

	protected := "sipCpp->sipProtect_" + name + "(" + args + ")"
	if virtual {
		sep := ""
		if args != "" {
			sep = ", "
		}

		protected = "sipCpp->sipProtectVirt_" + name + "(sipSelfWasArg" + sep + args + ")"
	}

	return "#if defined(SIP_PROTECTED_IS_PUBLIC)\n" + line(direct) + "#else\n" + line(protected) + "#endif\n"
}

// functionUsesTemplates writes %MethodCode, and %VirtualCatcherCode for
// virtuals, so that a function whose signature mentions templates is
// called through plain pointers. Parameters are renamed a0, a1, ... and
// the C++ signature is kept alongside.
func functionUsesTemplates(ctx *rules.Context, rec *sip.Record) error {
	if rec.IsSignal || rec.Template != "" {
		return nil
	}

	fn, ok := ctx.Item.(*cxxast.Function)
	if !ok {
		return fmt.Errorf("%w: %s is not a function", ErrStage, ctx.Describe())
	}

	isEnum := isEnumIn(ctx)
	constructor := fn.Kind() == cxxast.KindConstructor
	static := fn.IsStatic() || atFileScope(fn.Parent())
	virtual := fn.IsVirtual() && !static && !constructor

	params := make([]parameter, len(rec.Parameters))
	sipParams := make([]string, len(rec.Parameters))
	cxxParams := make([]string, len(rec.Parameters))
	args := make([]string, len(rec.Parameters))
	traces := make([]string, len(rec.Parameters))

	for i, text := range rec.Parameters {
		p := parseParameter(text)
		name := "a" + strconv.Itoa(i)
		h := NewHeldAs(p.typ, isEnum)

		params[i] = p
		sipParams[i] = p.render(name, true)
		cxxParams[i] = p.render(name, false)
		traces[i] = p.typ + ":" + string(h.Category)

		switch {
		case h.Category == Object:
			args[i] = "*" + name
		case strings.Contains(p.annotations, "/Out/") && !strings.HasSuffix(p.typ, "&"):
			args[i] = "&" + name
		default:
			args[i] = name
		}
	}

	result := NewHeldAs(rec.FnResult, isEnum)
	if constructor {
		result = NewHeldAs("void", isEnum)
	}

	trace := sip.GeneratedFor(ctx.Describe(), ctx.Rule,
		fmt.Sprintf("result=%s:%s params=[%s]", rec.FnResult, result.Category, strings.Join(traces, ", ")))

	ref := strings.HasSuffix(result.CxxT, "&")
	data := methodCode{
		Trace:       trace,
		Pure:        fn.IsPure(),
		Constructor: constructor,
		SipClass:    strings.ReplaceAll(cxxast.QualifiedName(fn.Parent()), "::", "_"),
		Args:        strings.Join(args, ", "),
		Void:        result.Category == Void,
		Ref:         ref,
		ValueT:      strings.TrimSpace(strings.TrimSuffix(result.CxxT, "&")),
		Result:      "cxxvalue",
	}

	assign, wrapL, wrapR := "cxxvalue = ", "", ""

	switch {
	case data.Void:
		assign = ""
	case ref:
		wrapL, wrapR = "&(", ")"
		if !result.Complex() {
			data.Result = "*cxxvalue"
		}
	case result.Category == Object:
		data.Result = "new CxxvalueT(cxxvalue)"
	}

	data.Call = callsite(fn, static, virtual, assign, wrapL, wrapR, data.Args)

	code, err := render("methodcode", data)
	if err != nil {
		return err
	}

	if virtual {
		catcher, err := virtualCatcherCode(trace, params, result, isEnum)
		if err != nil {
			return err
		}

		code += catcher
	}

	rec.CxxFnResult = rec.FnResult
	rec.CxxParameters = cxxParams
	rec.Parameters = sipParams
	rec.Template = "methodcode"
	rec.Code += code

	if !constructor && !ref && result.Category == Object {
		rec.FnResult = result.CxxT + " *"
	}

	return nil
}

func virtualCatcherCode(trace string, params []parameter, result HeldAs, isEnum func(string) bool) (string, error) {
	data := virtualCatcher{Trace: trace, Void: result.Category == Void}

	var enc strings.Builder

	for i, p := range params {
		name := "a" + strconv.Itoa(i)
		h := NewHeldAs(p.typ, isEnum)
		e, arg := catcherArg(h, name)

		enc.WriteString(e)
		data.Params = append(data.Params, catcherParam{
			Name:    name,
			Declare: h.Declare(name, "sipIsErr = 1;", false, true),
			Arg:     arg,
		})
	}

	data.Encodings = enc.String()

	if !data.Void {
		data.ResultFormat = resultFormat(result)
		if result.Complex() {
			data.Result = result.Declare("result", "sipIsErr = 1;", false, false)
		}
	}

	return render("virtualcatcher", data)
}
