package emitter

import (
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// qualifiers computes the prefix and suffix of a function. Static and
// virtual only mean something inside a class.
func qualifiers(fn *cxxast.Function) (prefix, suffix string) {
	if fn.IsInline() {
		prefix += sip.PrefixInline
	}

	if fn.IsConst() {
		suffix += sip.SuffixConst
	}

	if namespaceLike(fn.Parent()) {
		return prefix, suffix
	}

	if fn.IsStatic() {
		prefix += sip.PrefixStatic
	}

	if fn.IsVirtual() {
		prefix += sip.PrefixVirtual

		if fn.IsPure() {
			suffix += sip.SuffixPure
		}
	}

	return prefix, suffix
}

// function renders a function, method, constructor or destructor.
// signal is set for methods of a signals section.
func (r *renderer) function(sc *scope, fn *cxxast.Function, level int, signal bool) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(fn)
	container := fn.Parent()
	parents := cxxast.Parents(container)

	name := fn.Spelling()
	if fn.Kind() == cxxast.KindConstructor {
		name, _, _ = strings.Cut(name, "<")
	}

	rec := sip.NewRecord(name)
	rec.FnResult = fn.ResultType()
	rec.TemplateParameters = templateDecls(fn.TemplateParams())
	rec.IsSignal = signal
	rec.Prefix, rec.Suffix = qualifiers(fn)

	var traces strings.Builder

	for _, p := range fn.Parameters() {
		text, trace, code, err := r.parameter(sc, fn, p)
		if err != nil {
			return "", err
		}

		rec.Parameters = append(rec.Parameters, text)
		rec.ModuleCode.Update(code)

		if trace != "" {
			traces.WriteString(pad + trace)
		}
	}

	ctx := r.context(sc, rules.StageFunction, container, fn)

	rule, err := r.db.Apply(ctx, rec, parents, name, strings.Join(rec.TemplateParameters, ", "),
		rec.FnResult, strings.Join(rec.Parameters, ", "), rec.Prefix, rec.Suffix)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	out := modified(pad, item, ruleID(rule, "")) + traces.String()

	ctx.Stage = rules.StageMethodCode

	entry, err := r.db.ApplyMethodCode(ctx, rec, parents, name)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, entryID(entry)), nil
	}

	if entry != nil && entry.Generator == nil && rec.Code != "" && !strings.HasPrefix(rec.Code, "%") {
		rec.Code = sip.Block("%MethodCode", rec.Code)
	}

	out += modified(pad, item, entryID(entry))

	sc.moduleCode.Update(rec.ModuleCode)

	return out + renderFunction(pad, rec, fn.Kind() == cxxast.KindConstructor), nil
}

// parameter applies the parameter rules to p and returns its rendering.
// A parameter cannot be discarded: SIP needs every argument.
func (r *renderer) parameter(sc *scope, fn *cxxast.Function, p *cxxast.Parameter) (text, trace string, code *sip.CodeMap, err error) {
	rec := sip.NewRecord(p.Spelling())
	rec.Decl = p.Decl()
	rec.Init = p.Default()

	ctx := r.context(sc, rules.StageParameter, fn.Parent(), p)
	ctx.Function = fn

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(fn.Parent()), fn.Spelling(), p.Spelling(), rec.Decl, rec.Init)
	if err != nil {
		return "", "", nil, err
	}

	text = rec.Decl + rec.Annotations.Render()
	if rec.Init != "" {
		text += " = " + rec.Init
	}

	return text, modified("", cxxast.Describe(p), ruleID(rule, "")), rec.ModuleCode, nil
}

func renderFunction(pad string, rec *sip.Record, constructor bool) string {
	var b strings.Builder

	if len(rec.TemplateParameters) > 0 {
		b.WriteString(pad + templatePrefix(rec.TemplateParameters, "\n"))
	}

	b.WriteString(pad + strings.Replace(rec.Prefix, sip.PrefixInline, "", 1))
	b.WriteString(joinTight(rec.FnResult, rec.Name+"("+strings.Join(rec.Parameters, ", ")+")"))
	b.WriteString(rec.Suffix)
	b.WriteString(rec.Annotations.Render())

	if rec.CxxParameters != nil || rec.CxxFnResult != "" {
		signature := "(" + strings.Join(rec.CxxParameters, ", ") + ")"
		if !constructor && rec.CxxFnResult != "" {
			signature = rec.CxxFnResult + " " + signature
		}

		b.WriteString("\n" + pad + "    [" + signature + "]")
	}

	b.WriteString(";\n")
	b.WriteString(rec.Code)

	return b.String()
}

// using renders a using declaration. SIP has no such construct, so only
// a variable rule can keep it, typically after rewriting the
// declaration.
func (r *renderer) using(sc *scope, u *cxxast.UsingDeclaration, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(u)

	rec := sip.NewRecord(u.Spelling())
	rec.Decl = "using " + u.Qualified()

	ctx := r.context(sc, rules.StageVariable, u.Parent(), u)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(u.Parent()), rec.Name, rec.Decl)
	if err != nil {
		return "", err
	}

	if rule == nil {
		r.logger.Debug("ignoring using declaration", "item", item, "function", u.ReferencesFunction())

		return r.discarded(pad, item, "default using handling"), nil
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	sc.moduleCode.Update(rec.ModuleCode)

	return modified(pad, item, ruleID(rule, "")) + pad + rec.Decl + rec.Annotations.Render() + ";\n" + rec.Code, nil
}
