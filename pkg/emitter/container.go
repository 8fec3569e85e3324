package emitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

const qScopedPointer = "QScopedPointer"

// memberState is what the members of a container tell about it.
type memberState struct {
	body        strings.Builder
	bases       []string
	annotations *sip.Annotations
	// signals is set while inside a Q_SIGNALS section.
	signals bool

	// needCopy marks a type that cannot be copied: a deleted copy
	// constructor, Q_DECLARE_PRIVATE, Q_DISABLE_COPY, or a private const or
	// QScopedPointer member.
	needCopy   bool
	needAssign bool
	hadCopy    bool
	hadAssign  bool
}

// members renders the children of parent at level, in source order.
func (r *renderer) members(ctx context.Context, sc *scope, parent cxxast.Cursor, level int) (*memberState, error) {
	st := &memberState{annotations: sip.NewAnnotations()}

	if c, ok := parent.(*cxxast.Container); ok {
		declarePrivate, disableCopy := c.Markers()
		st.needCopy = declarePrivate || disableCopy
	}

	for member := range parent.Children() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decl, err := r.member(ctx, sc, member, level, st)
		if err != nil {
			return nil, err
		}

		if r.opts.DumpItems {
			r.logger.Info("processing", "item", cxxast.Describe(member))
			st.body.WriteString(sip.Pad(level) + "// Processing " + cxxast.Describe(member) + "\n")
		}

		st.body.WriteString(decl)
	}

	return st, nil
}

// visiblePrivate reports the private members SIP still needs to see:
// constructors and destructors, virtuals, access specifiers and using
// declarations. Private variables are looked at but never emitted.
func visiblePrivate(c cxxast.Cursor) bool {
	switch c := c.(type) {
	case *cxxast.Function:
		return c.Kind() == cxxast.KindConstructor || c.Kind() == cxxast.KindDestructor || c.IsVirtual()
	case *cxxast.Variable, *cxxast.AccessSpecifier, *cxxast.UsingDeclaration:
		return true
	default:
		return false
	}
}

func (r *renderer) member(ctx context.Context, sc *scope, member cxxast.Cursor, level int, st *memberState) (string, error) {
	switch m := member.(type) {
	case *cxxast.BaseSpecifier:
		// SIP wants neither protected nor private bases.
		if m.Access() == cxxast.AccessPublic {
			st.bases = append(st.bases, m.Spelling())
		}

		return "", nil
	case *cxxast.TemplateParameter:
		return "", nil
	}

	if member.Access() == cxxast.AccessPrivate && !visiblePrivate(member) {
		r.logger.Debug("ignoring private member", "item", cxxast.Describe(member))

		return "", nil
	}

	switch m := member.(type) {
	case *cxxast.Container:
		return r.container(ctx, sc, m, level)
	case *cxxast.ForwardDeclaration:
		return r.forward(sc, m, level)
	case *cxxast.Function:
		return r.method(sc, m, level, st)
	case *cxxast.Enum:
		return r.enum(sc, m, level)
	case *cxxast.AccessSpecifier:
		decl, signals := r.accessSpecifier(m, level)
		st.signals = signals

		return decl, nil
	case *cxxast.Typedef:
		return r.typedef(sc, m, level)
	case *cxxast.Variable:
		if m.Access() == cxxast.AccessPrivate {
			if m.IsConst() || strings.HasPrefix(m.Type(), qScopedPointer) {
				st.needCopy = true
			}

			r.logger.Debug("ignoring private member", "item", cxxast.Describe(m))

			return "", nil
		}

		return r.variable(sc, m, level)
	case *cxxast.UsingDeclaration:
		return r.using(sc, m, level)
	case *cxxast.Unexposed:
		return r.unexposed(sc, m, level)
	default:
		r.logger.Debug("ignoring unusable member", "item", cxxast.Describe(member))

		return "", nil
	}
}

// method notes what a member function says about copying before
// rendering it.
func (r *renderer) method(sc *scope, fn *cxxast.Function, level int, st *memberState) (string, error) {
	switch {
	case fn.IsPure():
		st.annotations.Add("Abstract")
	case fn.IsCopyConstructor():
		if fn.IsDeleted() {
			st.needCopy = true

			return "", nil
		}

		st.hadCopy = true
	case fn.IsAssignment():
		if fn.IsDeleted() {
			st.needAssign = true

			return "", nil
		}

		st.hadAssign = true
	}

	if fn.IsDeleted() {
		r.logger.Debug("ignoring deleted function", "item", cxxast.Describe(fn))

		return "", nil
	}

	return r.function(sc, fn, level, st.signals)
}

func keyword(c *cxxast.Container) string {
	if c.Kind() == cxxast.KindClassTemplate {
		return "class"
	}

	return c.Keyword()
}

func templateDecls(params []*cxxast.TemplateParameter) []string {
	if params == nil {
		return nil
	}

	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Decl()
	}

	return out
}

func templatePrefix(params []string, sep string) string {
	if len(params) == 0 {
		return ""
	}

	return "template <" + strings.Join(params, ", ") + ">" + sep
}

// container renders a namespace, class, struct or union. The body is
// rendered first in a scope of its own so that a discarded container
// leaves nothing of its children behind.
func (r *renderer) container(ctx context.Context, sc *scope, c *cxxast.Container, level int) (string, error) {
	inner := newScope()

	st, err := r.members(ctx, inner, c, level+1)
	if err != nil {
		return "", err
	}

	pad := sip.Pad(level)
	item := cxxast.Describe(c)

	rec := sip.NewRecord(c.Spelling())
	rec.Annotations = st.annotations
	rec.Decl = keyword(c) + " " + rec.Name
	rec.TemplateParameters = templateDecls(c.TemplateArgs())
	rec.BaseSpecifiers = st.bases

	rec.Body = st.body.String()
	if rec.Body == "" {
		rec.Body = pad + "    // Empty!\n"
	}

	rctx := r.context(sc, rules.StageContainer, c.Parent(), c)

	rule, err := r.db.Apply(rctx, rec, cxxast.Parents(c.Parent()), rec.Name,
		strings.Join(rec.TemplateParameters, ", "), strings.Join(rec.BaseSpecifiers, ", "), rec.Body)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	out := modified(pad, item, ruleID(rule, ""))

	rctx.Stage = rules.StageTypeCode

	entry, mapped, err := r.db.ApplyTypeCode(rctx, rec, cxxast.QualifiedName(c))
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, entryID(entry)), nil
	}

	out += modified(pad, item, entryID(entry))

	sc.absorb(inner)
	sc.moduleCode.Update(rec.ModuleCode)

	if mapped {
		name := rec.Name
		if args := c.TemplateArgs(); len(args) > 0 {
			names := make([]string, len(args))
			for i, a := range args {
				names[i] = a.Spelling()
			}

			name += "<" + strings.Join(names, ", ") + ">"
		}

		return out + mappedType(pad, rec.TemplateParameters, name, rec), nil
	}

	out += pad + templatePrefix(rec.TemplateParameters, " ") + rec.Decl
	if len(rec.BaseSpecifiers) > 0 {
		out += " : " + strings.Join(rec.BaseSpecifiers, ", ")
	}

	out += rec.Annotations.Render() + " {\n"

	if access := c.InitialAccessSpecifier(); access != "" {
		out += pad + access + "\n"
	}

	out += sip.Block("%TypeHeaderCode", "#include <"+r.filename+">") + rec.Code + rec.Body

	if c.Kind() != cxxast.KindNamespace && !strings.HasPrefix(rec.Decl, "%Exception") {
		out += privateMembers(pad, item, rec.Name, st)
	}

	return out + pad + "};\n", nil
}

// privateMembers declares the copy constructor and assignment operator
// private when the type cannot be copied, so that SIP does not generate
// them.
func privateMembers(pad, item, name string, st *memberState) string {
	var b strings.Builder

	if st.needCopy && !st.hadCopy {
		b.WriteString(pad + "private:\n")
		b.WriteString(pad + "    " + sip.GeneratedFor(item, "non-copyable type handling", "private copy constructor"))
		fmt.Fprintf(&b, "%s    %s(const %s &);\n", pad, name, name)
	}

	if (st.needCopy || st.needAssign) && !st.hadAssign {
		b.WriteString(pad + "private:\n")
		b.WriteString(pad + "    " + sip.GeneratedFor(item, "non-assignable type handling", "private assignment operator"))
		fmt.Fprintf(&b, "%s    %s &operator=(const %s &);\n", pad, name, name)
	}

	return b.String()
}

// mappedType renders a type whose type code converts it as a
// %MappedType. The type code carries its own %TypeHeaderCode.
func mappedType(pad string, params []string, name string, rec *sip.Record) string {
	return pad + templatePrefix(params, "\n"+pad) + "%MappedType " + name + rec.Annotations.Render() + "\n" +
		pad + "{\n" + rec.Code + pad + "};\n"
}

func (r *renderer) forward(sc *scope, d *cxxast.ForwardDeclaration, level int) (string, error) {
	pad := sip.Pad(level)
	item := cxxast.Describe(d)

	rec := sip.NewRecord(d.Spelling())
	rec.Decl = d.Keyword() + " " + rec.Name
	rec.TemplateParameters = templateDecls(d.TemplateParams())

	if rec.TemplateParameters != nil {
		rec.Decl = "class " + rec.Name
	}

	ctx := r.context(sc, rules.StageForwardDeclaration, d.Parent(), d)

	rule, err := r.db.Apply(ctx, rec, cxxast.Parents(d.Parent()), rec.Name, strings.Join(rec.TemplateParameters, ", "))
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded(pad, item, ruleID(rule, "")), nil
	}

	sc.moduleCode.Update(rec.ModuleCode)

	return modified(pad, item, ruleID(rule, "")) +
		pad + templatePrefix(rec.TemplateParameters, " ") + rec.Decl + rec.Annotations.Render() + ";\n", nil
}

// accessSpecifier renders a section label at the indentation of the
// container. Slots sections keep their Qt spelling; SIP understands it.
func (r *renderer) accessSpecifier(a *cxxast.AccessSpecifier, level int) (decl string, signals bool) {
	pad := sip.Pad(level - 1)

	switch {
	case a.IsSignals():
		return pad + "signals:\n", true
	case a.IsSlots():
		return pad + a.Spelling() + ":\n", false
	}

	switch a.Access() {
	case cxxast.AccessPublic, cxxast.AccessProtected, cxxast.AccessPrivate:
		return pad + a.Access().String() + ":\n", false
	default:
		r.logger.Warn("access specifier mapped to public", "text", a.Spelling(), "item", cxxast.Describe(a))

		return pad + "public: // Mapped from " + a.Spelling() + "\n", false
	}
}
