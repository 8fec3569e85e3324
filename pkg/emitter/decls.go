package emitter

import (
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// enum renders an enumeration. Enumerations go through the variable
// rules, decl being "enum Name" or "enum class Name".
func (r *renderer) enum(sc *scope, e *cxxast.Enum, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(e)

	rec := sip.NewRecord(e.Spelling())

	rec.Decl = "enum " + rec.Name
	if e.IsScoped() {
		rec.Decl = "enum class " + rec.Name
	}

	for _, c := range e.Constants() {
		rec.Enumerations = append(rec.Enumerations, c.Spelling())
	}

	ctx := r.context(sc, rules.StageVariable, e.Parent(), e)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(e.Parent()), rec.Name, rec.Decl)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	sc.moduleCode.Update(rec.ModuleCode)

	var b strings.Builder

	b.WriteString(modified(pad, item, ruleID(rule, "")))
	b.WriteString(pad + rec.Decl + rec.Annotations.Render() + "\n")
	b.WriteString(pad + "{\n")

	for _, enumerator := range rec.Enumerations {
		b.WriteString(pad + "    " + enumerator + ",\n")
	}

	b.WriteString(pad + "};\n")
	b.WriteString(rec.Code)

	return b.String(), nil
}

// typedef renders a typedef. A type code making it a %MappedType puts
// the mapped type before the typedef.
func (r *renderer) typedef(sc *scope, t *cxxast.Typedef, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(t)

	rec := sip.NewRecord(t.Spelling())

	result, params, fnPointer := t.FunctionPointer()
	if fnPointer {
		rec.FnResult, rec.Decl = result, params
	} else {
		rec.Decl = t.Underlying()
	}

	ctx := r.context(sc, rules.StageTypedef, t.Parent(), t)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(t.Parent()), rec.Name, "", rec.Decl)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	out := modified(pad, item, ruleID(rule, ""))

	ctx.Stage = rules.StageTypeCode

	entry, mapped, err := r.db.ApplyTypeCode(ctx, rec, cxxast.QualifiedName(t))
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, entryID(entry)), nil
	}

	out += modified(pad, item, entryID(entry))

	sc.moduleCode.Update(rec.ModuleCode)

	// SIP rejects /Deprecated/ on typedefs.
	rec.Annotations.Remove("Deprecated")

	var decl string

	if fnPointer {
		decl = "typedef " + rec.FnResult + " (*" + rec.Name + ")(" + rec.Decl + ")"
		decl = strings.ReplaceAll(strings.ReplaceAll(decl, "* ", "*"), "& ", "&")
	} else {
		decl = "typedef " + rec.Decl + " " + rec.Name
	}

	if mapped {
		mapping := &sip.Record{Annotations: sip.NewAnnotations(), Code: rec.Code}

		return out + mappedType(pad, nil, rec.Decl, mapping) +
			pad + decl + rec.Annotations.Render() + ";\n", nil
	}

	return out + pad + decl + rec.Annotations.Render() + rec.Code + ";\n", nil
}

// variable renders a global, static member or field. Protected fields
// are unreachable from Python and dropped. Code from the rules is a
// braced %GetCode/%SetCode block placed before the semicolon.
func (r *renderer) variable(sc *scope, v *cxxast.Variable, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(v)

	if v.Access() == cxxast.AccessProtected {
		return r.discarded(pad, item, "protected handling"), nil
	}

	rec := sip.NewRecord(v.Spelling())

	rec.Decl = v.Type()
	if storage := v.StorageClass(); storage != "" {
		rec.Decl = storage + " " + rec.Decl
	}

	if strings.Contains(rec.Decl, "const ") {
		rec.Annotations.Add("NoSetter")
	}

	ctx := r.context(sc, rules.StageVariable, v.Parent(), v)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(v.Parent()), rec.Name, rec.Decl)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	sc.moduleCode.Update(rec.ModuleCode)

	prefixes, typ, ops, dims := sip.DecomposeType(rec.Decl)

	var decl string

	if strings.Contains(typ, "(*)") {
		decl = prefixes + strings.Replace(typ+ops, "(*)", "(*"+rec.Name+")", 1) + dims
	} else {
		decl = prefixes + typ + " " + ops + rec.Name + dims
	}

	return modified(pad, item, ruleID(rule, "")) + pad + decl + rec.Annotations.Render() + rec.Code + ";\n", nil
}

// unexposed renders a construct the parser could not classify. Without
// a matching rule it is dropped.
func (r *renderer) unexposed(sc *scope, u *cxxast.Unexposed, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(u)
	text := u.Text()

	name := u.Spelling()
	if name == "" {
		name, _, _ = strings.Cut(strings.TrimSpace(text), " ")
	}

	rec := sip.NewRecord(name)
	rec.Decl = text

	ctx := r.context(sc, rules.StageUnexposed, u.Parent(), u)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(u.Parent()), name, text)
	if err != nil {
		return "", err
	}

	if rule == nil {
		r.logger.Debug("ignoring unexposed declaration", "item", item)

		return r.discarded(pad, item, "default unexposed handling"), nil
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	sc.moduleCode.Update(rec.ModuleCode)

	return modified(pad, item, ruleID(rule, "")) + pad + rec.Decl + "\n" + rec.Code, nil
}
