package cxxast

import (
	"iter"
	"slices"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// WasStruct is the initial access specifier of a class template declared
// with the struct keyword. SIP renders templates as classes.
const WasStruct = "public: // Was struct"

// Container is a namespace, class, struct, union or class template.
type Container struct {
	*Base
}

func newContainer(b *Base) Cursor { return &Container{Base: b} }

func init() {
	register(newContainer, KindNamespace, KindClass, KindStruct, KindUnion, KindClassTemplate)
}

// DisplayName implements Cursor.
func (c *Container) DisplayName() string {
	if c.anonymous {
		return c.Keyword() + " " + c.name
	}

	return c.name
}

// IsAnonymous reports whether the name was synthesized from the start line.
func (c *Container) IsAnonymous() bool { return c.anonymous }

// Keyword is the C++ keyword introducing the container.
func (c *Container) Keyword() string {
	switch nodeType(c.node) {
	case "namespace_definition":
		return "namespace"
	case "struct_specifier":
		return "struct"
	case "union_specifier":
		return "union"
	default:
		return "class"
	}
}

func (c *Container) body() sitter.Node {
	return c.node.ChildByFieldName("body")
}

func (c *Container) defaultAccess() Access {
	switch nodeType(c.node) {
	case "namespace_definition":
		return AccessNone
	case "class_specifier":
		return AccessPrivate
	default:
		return AccessPublic
	}
}

// Children yields template parameters, base specifiers and then the members
// in source order.
func (c *Container) Children() iter.Seq[Cursor] {
	return func(yield func(Cursor) bool) {
		for _, p := range templateParameters(c.tu, c, c.templ) {
			if !yield(p) {
				return
			}
		}

		for _, base := range c.BaseSpecifiers() {
			if !yield(base) {
				return
			}
		}

		w := newWalker(c.tu, c, c.defaultAccess(), yield)
		w.items(c.body())
	}
}

// TemplateArgs returns the template parameters, or nil when the container is
// not a template. A template with no parameters yields an empty slice.
func (c *Container) TemplateArgs() []*TemplateParameter {
	if c.kind != KindClassTemplate {
		return nil
	}

	args := []*TemplateParameter{}

	for child := range c.Children() {
		p, ok := child.(*TemplateParameter)
		if !ok {
			break
		}

		args = append(args, p)
	}

	return args
}

// BaseSpecifiers returns the base classes in declaration order.
func (c *Container) BaseSpecifiers() []*BaseSpecifier {
	var clause sitter.Node

	for idx := range c.node.NamedChildCount() {
		if child := c.node.NamedChild(idx); nodeType(child) == "base_class_clause" {
			clause = child

			break
		}
	}

	if clause.IsNull() {
		return nil
	}

	var (
		bases  []*BaseSpecifier
		access Access
	)

	for idx := range clause.NamedChildCount() {
		child := clause.NamedChild(idx)

		switch nodeType(child) {
		case "access_specifier":
			access = parseAccess(c.tu.spell(child))
		case "comment":
		default:
			if access == AccessNone {
				access = c.defaultAccess()
			}

			b := &Base{tu: c.tu, parent: c, kind: KindBaseSpecifier, node: child, access: access, name: c.tu.spell(child)}
			bases = append(bases, &BaseSpecifier{Base: b})
			access = AccessNone
		}
	}

	return bases
}

// InitialAccessSpecifier is WasStruct for class templates written with the
// struct keyword, and empty otherwise. The keyword is found by scanning the
// tokens past the balanced template parameter brackets.
func (c *Container) InitialAccessSpecifier() string {
	if c.kind != KindClassTemplate {
		return ""
	}

	tokens := c.tokensOf(c.templ)
	depth := 0

	for i, tok := range tokens {
		switch tok.Text {
		case "<":
			depth++
		case ">":
			depth--
		case ">>":
			depth -= 2
		default:
			continue
		}

		if depth < 0 {
			break
		}

		if depth == 0 {
			if i+1 < len(tokens) && tokens[i+1].Text == "struct" {
				return WasStruct
			}

			return ""
		}
	}

	c.tu.logger.Debug("unbalanced template brackets", "file", c.tu.path, "name", c.name,
		"line", c.Extent().StartLine)

	return ""
}

// IsForward reports whether the container has no body.
func (c *Container) IsForward() bool {
	return c.kind != KindNamespace && c.body().IsNull()
}

// Markers reports the Qt macros seen directly in the body:
// Q_DECLARE_PRIVATE (or _D) and Q_DISABLE_COPY.
func (c *Container) Markers() (declarePrivate, disableCopy bool) {
	body := c.body()
	if body.IsNull() {
		return false, false
	}

	start, end := nodeRange(body)
	nested := nestedBodies(body)

	for _, b := range c.tu.src.blanks {
		if b.start < start || b.end > end || inRanges(b.start, nested) {
			continue
		}

		switch b.name {
		case macroDeclarePrivate, macroDeclarePrivateD:
			declarePrivate = true
		case macroDisableCopy, macroDisableCopy + "_MOVE":
			disableCopy = true
		}
	}

	return declarePrivate, disableCopy
}

func nestedBodies(body sitter.Node) [][2]int {
	var ranges [][2]int

	var visit func(n sitter.Node)

	visit = func(n sitter.Node) {
		for idx := range n.NamedChildCount() {
			child := n.NamedChild(idx)
			if _, ok := specifierKinds[nodeType(child)]; ok {
				if inner := child.ChildByFieldName("body"); !inner.IsNull() {
					start, end := nodeRange(inner)
					ranges = append(ranges, [2]int{start, end})

					continue
				}
			}

			visit(child)
		}
	}

	visit(body)

	return ranges
}

func inRanges(offset int, ranges [][2]int) bool {
	return slices.ContainsFunc(ranges, func(r [2]int) bool {
		return offset >= r[0] && offset < r[1]
	})
}

// BaseSpecifier is one entry of a class's base list.
type BaseSpecifier struct {
	*Base
}

// TemplateParameter is one parameter of a template parameter list.
type TemplateParameter struct {
	*Base
}

func newTemplateParameter(b *Base) Cursor { return &TemplateParameter{Base: b} }

func init() {
	register(newTemplateParameter, KindTemplateParameter)
	register(func(b *Base) Cursor { return &BaseSpecifier{Base: b} }, KindBaseSpecifier)
}

// Decl renders the parameter as written: "typename T", "int N = 3".
func (p *TemplateParameter) Decl() string {
	return JoinTokens(p.tokensOf(p.node))
}

func templateParameters(tu *TranslationUnit, owner Cursor, templ sitter.Node) []*TemplateParameter {
	if templ.IsNull() {
		return nil
	}

	list := templ.ChildByFieldName("parameters")
	if list.IsNull() {
		return nil
	}

	params := make([]*TemplateParameter, 0, list.NamedChildCount())

	for idx := range list.NamedChildCount() {
		n := list.NamedChild(idx)
		if nodeType(n) == "comment" {
			continue
		}

		b := &Base{tu: tu, parent: owner, kind: KindTemplateParameter, node: n, name: templateParameterName(tu, n)}
		params = append(params, &TemplateParameter{Base: b})
	}

	return params
}

func templateParameterName(tu *TranslationUnit, n sitter.Node) string {
	if name := n.ChildByFieldName("name"); !name.IsNull() {
		return tu.spell(name)
	}

	if d := n.ChildByFieldName("declarator"); !d.IsNull() {
		if _, name := analyzeDeclarator(d); !name.IsNull() {
			return tu.spell(name)
		}
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if nodeType(child) == "type_identifier" || nodeType(child) == "identifier" {
			return tu.spell(child)
		}
	}

	return ""
}
