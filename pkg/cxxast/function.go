package cxxast

import (
	"iter"
	"regexp"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Function is a free function, method, constructor, destructor or function
// template. node is the function_declarator (or operator_cast) and declNode
// the declaration or definition holding it.
type Function struct {
	*Base
}

func newFunction(b *Base) Cursor { return &Function{Base: b} }

func init() {
	register(newFunction, KindFunction, KindMethod, KindConstructor, KindDestructor, KindFunctionTemplate)
}

var specifierWords = map[string]bool{
	"virtual":      true,
	"static":       true,
	"inline":       true,
	"explicit":     true,
	"extern":       true,
	"friend":       true,
	"constexpr":    true,
	"consteval":    true,
	"mutable":      true,
	"register":     true,
	"thread_local": true,
}

// DisplayName renders "name(type, type)".
func (f *Function) DisplayName() string {
	params := f.Parameters()
	types := make([]string, 0, len(params))

	for _, p := range params {
		types = append(types, p.Type())
	}

	return f.name + "(" + strings.Join(types, ", ") + ")"
}

// Children yields the template parameters followed by the parameters.
func (f *Function) Children() iter.Seq[Cursor] {
	return func(yield func(Cursor) bool) {
		for _, p := range templateParameters(f.tu, f, f.templ) {
			if !yield(p) {
				return
			}
		}

		for _, p := range f.Parameters() {
			if !yield(p) {
				return
			}
		}
	}
}

// TemplateParams returns the parameters of the enclosing template
// declaration, nil when the function is not a template.
func (f *Function) TemplateParams() []*TemplateParameter {
	if f.templ.IsNull() {
		return nil
	}

	return templateParameters(f.tu, f, f.templ)
}

func (f *Function) parameterList() sitter.Node {
	if nodeType(f.node) == "function_declarator" {
		return f.node.ChildByFieldName("parameters")
	}

	return findDescendant(f.node, "parameter_list")
}

func findDescendant(n sitter.Node, typ string) sitter.Node {
	if n.IsNull() {
		return n
	}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if nodeType(child) == typ {
			return child
		}

		if found := findDescendant(child, typ); !found.IsNull() {
			return found
		}
	}

	return sitter.Node{}
}

// Parameters returns the parameters in declaration order.
func (f *Function) Parameters() []*Parameter {
	list := f.parameterList()
	if list.IsNull() {
		return nil
	}

	var params []*Parameter

	for idx := range list.ChildCount() {
		n := list.Child(idx)

		switch nodeType(n) {
		case "parameter_declaration", "optional_parameter_declaration",
			"variadic_parameter_declaration", "optional_type_parameter_declaration":
		case "...":
			p := &Parameter{Base: &Base{tu: f.tu, parent: f, kind: KindParameter, node: n}, variadic: true}
			params = append(params, p)

			continue
		default:
			continue
		}

		p := &Parameter{Base: &Base{tu: f.tu, parent: f, kind: KindParameter, node: n}}
		p.name = p.spelling()

		// "(void)" declares no parameters.
		if p.name == "" && p.Type() == "void" {
			continue
		}

		params = append(params, p)
	}

	return params
}

// prefixTokens are the tokens of the declaration before the declarator,
// without storage and function specifiers.
func (f *Function) prefixTokens() []Token {
	start, _ := nodeRange(f.node)
	all := without(before(f.tokensOf(f.declNode), start), attributes(f.declNode)...)

	out := all[:0:0]
	for _, tok := range all {
		if specifierWords[tok.Text] {
			continue
		}

		out = append(out, tok)
	}

	return out
}

func attributes(n sitter.Node) []sitter.Node {
	var out []sitter.Node

	for idx := range n.NamedChildCount() {
		switch child := n.NamedChild(idx); nodeType(child) {
		case "attribute_declaration", "attribute_specifier", "ms_declspec_modifier", "alignas_qualifier":
			out = append(out, child)
		}
	}

	return out
}

// ResultType is the return type as written, "" for constructors,
// destructors and conversion operators.
func (f *Function) ResultType() string {
	if f.kind == KindConstructor || f.kind == KindDestructor || f.IsConversion() {
		return ""
	}

	result := JoinTokens(f.prefixTokens())

	if result == "auto" {
		if trailing := findDescendant(f.node, "trailing_return_type"); !trailing.IsNull() {
			tokens := f.tokensOf(trailing)
			if len(tokens) > 0 && tokens[0].Text == "->" {
				tokens = tokens[1:]
			}

			result = JoinTokens(tokens)
		}
	}

	return result
}

// IsConversion reports a conversion operator such as "operator bool()".
func (f *Function) IsConversion() bool {
	return nodeType(f.node) == "operator_cast"
}

func (f *Function) hasPrefixWord(word string) bool {
	start, _ := nodeRange(f.node)
	for _, tok := range before(f.tokensOf(f.declNode), start) {
		if tok.Text == word {
			return true
		}
	}

	return false
}

// Qualifiers are the tokens following the parameter list inside the
// declarator: "const", "override", "noexcept", "&".
func (f *Function) Qualifiers() []string {
	list := f.parameterList()
	if list.IsNull() {
		return nil
	}

	_, listEnd := nodeRange(list)

	var out []string

	for _, tok := range f.tokensOf(f.node) {
		if tok.Offset >= listEnd {
			out = append(out, tok.Text)
		}
	}

	return out
}

func (f *Function) hasQualifier(word string) bool {
	for _, q := range f.Qualifiers() {
		if q == word {
			return true
		}
	}

	return false
}

// trailer is the text after the declarator: "= 0", "= delete", "= default".
func (f *Function) trailer() []Token {
	_, end := nodeRange(f.node)

	var out []Token

	for _, tok := range f.tokensOf(f.declNode) {
		if tok.Offset >= end {
			out = append(out, tok)
		}
	}

	return out
}

func (f *Function) trailerIs(word string) bool {
	t := f.trailer()

	return len(t) >= 2 && t[0].Text == "=" && t[1].Text == word
}

// IsConst reports a const member function.
func (f *Function) IsConst() bool { return f.hasQualifier("const") }

// IsStatic reports a static member or internal-linkage function.
func (f *Function) IsStatic() bool { return f.hasPrefixWord("static") }

// IsVirtual reports a virtual, overriding or final method.
func (f *Function) IsVirtual() bool {
	return f.hasPrefixWord("virtual") || f.hasQualifier("override") || f.hasQualifier("final")
}

// IsPure reports a pure virtual method.
func (f *Function) IsPure() bool { return f.trailerIs("0") }

// IsDeleted reports "= delete".
func (f *Function) IsDeleted() bool { return f.trailerIs("delete") }

// IsExplicit reports an explicit constructor or conversion.
func (f *Function) IsExplicit() bool { return f.hasPrefixWord("explicit") }

// IsInline reports an inline keyword or an in-class definition.
func (f *Function) IsInline() bool { return f.hasPrefixWord("inline") || f.IsDefinition() }

// IsDefinition reports a function with a body.
func (f *Function) IsDefinition() bool {
	return !f.declNode.ChildByFieldName("body").IsNull()
}

// IsCopyConstructor reports "Name(const Name &)" and "Name(Name &)".
func (f *Function) IsCopyConstructor() bool {
	if f.kind != KindConstructor {
		return false
	}

	params := f.Parameters()
	if len(params) != 1 {
		return false
	}

	typ := strings.TrimPrefix(params[0].Type(), "const ")

	return typ == f.name+" &" || typ == stripTemplateArgs(f.parent.Spelling())+" &"
}

// IsAssignment reports a copy assignment operator.
func (f *Function) IsAssignment() bool { return f.name == "operator=" }

// Parameter is one function parameter.
type Parameter struct {
	*Base

	variadic bool
}

func init() {
	register(func(b *Base) Cursor { return &Parameter{Base: b} }, KindParameter)
}

func (p *Parameter) nameNode() sitter.Node {
	if p.variadic {
		return sitter.Node{}
	}

	d := p.node.ChildByFieldName("declarator")
	if d.IsNull() {
		return d
	}

	_, name := analyzeDeclarator(d)

	switch nodeType(name) {
	case "identifier", "field_identifier":
		return name
	case "variadic_declarator", "reference_declarator":
		for idx := range name.NamedChildCount() {
			if child := name.NamedChild(idx); nodeType(child) == "identifier" {
				return child
			}
		}
	}

	return sitter.Node{}
}

func (p *Parameter) spelling() string {
	name := p.nameNode()
	if name.IsNull() {
		return ""
	}

	return p.tu.spell(name)
}

// declTokens are the tokens before any default value.
func (p *Parameter) declTokens() []Token {
	tokens := p.tokensOf(p.node)

	if value := p.node.ChildByFieldName("default_value"); !value.IsNull() {
		start, _ := nodeRange(value)
		tokens = before(tokens, start)
		tokens = dropTrailing(tokens, func(t Token) bool { return t.Text == "=" })
	}

	return tokens
}

// Type is the parameter type without the name: "const QString &".
func (p *Parameter) Type() string {
	if p.variadic {
		return "..."
	}

	return JoinTokens(without(p.declTokens(), p.nameNode()))
}

// Decl is the parameter as declared, name included: "const QString &name".
func (p *Parameter) Decl() string {
	if p.variadic {
		return "..."
	}

	decl := JoinTokens(p.declTokens())

	return strings.Replace(decl, "*const ", "*", 1)
}

// RawDefault is the default value as written, outer parentheses removed.
func (p *Parameter) RawDefault() string {
	value := p.node.ChildByFieldName("default_value")
	if value.IsNull() {
		return ""
	}

	text := JoinTokens(p.tokensOf(value))
	for len(text) > 1 && text[0] == '(' && text[len(text)-1] == ')' && balanced(text[1:len(text)-1]) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	return text
}

func balanced(text string) bool {
	depth := 0

	for _, c := range text {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}

	return depth == 0
}

var qualifiedID = regexp.MustCompile(`(?i)(?:[a-z_][a-z_0-9]*::)*([a-z_][a-z_0-9]*)`)

// Default is the default value ready for SIP: "{}" is spelled out for the
// parameter type, and enumerators declared in this file are qualified with
// their enclosing scope.
func (p *Parameter) Default() string {
	text := p.RawDefault()

	switch text {
	case "", "0", "nullptr", "Q_NULLPTR":
		return text
	case "{}":
		typ := p.Type()

		switch {
		case strings.HasSuffix(typ, "*"):
			return "nullptr"
		case p.tu.IsEnum(bareType(typ)):
			return "0"
		default:
			return bareType(typ) + "()"
		}
	}

	return qualifiedID.ReplaceAllStringFunc(text, func(id string) string {
		if strings.Contains(id, "::") {
			return id
		}

		if scope, ok := p.tu.EnumScope(id); ok && scope != "" {
			return scope + "::" + id
		}

		return id
	})
}

// bareType strips cv-qualifiers and references: "const QFlags<X> &" is
// "QFlags<X>".
func bareType(typ string) string {
	typ = strings.TrimPrefix(typ, "const ")
	typ = strings.TrimSuffix(typ, "&")
	typ = strings.TrimSuffix(typ, "&")

	return strings.TrimSpace(typ)
}
