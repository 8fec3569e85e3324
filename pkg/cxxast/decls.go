package cxxast

import (
	"iter"
	"regexp"
	"strings"
	"unicode"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Enum is an enumeration.
type Enum struct {
	*Base
}

// EnumConstant is one enumerator.
type EnumConstant struct {
	*Base
}

func init() {
	register(func(b *Base) Cursor { return &Enum{Base: b} }, KindEnum)
	register(func(b *Base) Cursor { return &EnumConstant{Base: b} }, KindEnumConstant)
}

// DisplayName implements Cursor.
func (e *Enum) DisplayName() string {
	if e.anonymous {
		return "enum " + e.name
	}

	return e.name
}

// IsAnonymous reports whether the name was synthesized from the start line.
func (e *Enum) IsAnonymous() bool { return e.anonymous }

// IsScoped reports "enum class" and "enum struct".
func (e *Enum) IsScoped() bool {
	tokens := e.tokensOf(e.node)

	return len(tokens) > 1 && (tokens[1].Text == "class" || tokens[1].Text == "struct")
}

// Children yields the enumerators.
func (e *Enum) Children() iter.Seq[Cursor] {
	return func(yield func(Cursor) bool) {
		for _, c := range e.Constants() {
			if !yield(c) {
				return
			}
		}
	}
}

// Constants returns the enumerators in declaration order.
func (e *Enum) Constants() []*EnumConstant {
	body := e.node.ChildByFieldName("body")
	if body.IsNull() {
		return nil
	}

	var out []*EnumConstant

	for idx := range body.NamedChildCount() {
		n := body.NamedChild(idx)
		if nodeType(n) != "enumerator" {
			continue
		}

		b := &Base{tu: e.tu, parent: e, kind: KindEnumConstant, node: n, name: e.tu.spell(n.ChildByFieldName("name"))}
		out = append(out, &EnumConstant{Base: b})
	}

	return out
}

// Value is the initializer as written, "" when implicit.
func (c *EnumConstant) Value() string {
	value := c.node.ChildByFieldName("value")
	if value.IsNull() {
		return ""
	}

	return JoinTokens(c.tokensOf(value))
}

// Typedef is a typedef or alias declaration. node is the declarator, or
// the alias_declaration itself.
type Typedef struct {
	*Base
}

func init() {
	register(func(b *Base) Cursor { return &Typedef{Base: b} }, KindTypedef)
}

// underlyingPrefix are the tokens shared by all declarators of the typedef.
func (t *Typedef) underlyingPrefix() []Token {
	if nodeType(t.declNode) == "alias_declaration" {
		return t.tokensOf(t.declNode.ChildByFieldName("type"))
	}

	typ := t.declNode.ChildByFieldName("type")

	switch nodeType(typ) {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		if !typ.ChildByFieldName("body").IsNull() {
			name := typ.ChildByFieldName("name")
			if name.IsNull() {
				kind := KindEnum
				if k, ok := specifierKinds[nodeType(typ)]; ok {
					kind = k
				}

				return []Token{{Text: anonymousName(kind, typ)}}
			}

			return t.tokensOf(name)
		}
	}

	decls := declarators(t.declNode)
	if len(decls) == 0 {
		return nil
	}

	start, _ := nodeRange(decls[0])

	var out []Token

	for _, tok := range before(t.tokensOf(t.declNode), start) {
		if tok.Text != "typedef" {
			out = append(out, tok)
		}
	}

	return out
}

// Underlying is the aliased type: "QSharedPointer<Category>",
// "void (*)(int)".
func (t *Typedef) Underlying() string {
	prefix := t.underlyingPrefix()
	if nodeType(t.declNode) == "alias_declaration" {
		return JoinTokens(prefix)
	}

	_, name := analyzeDeclarator(t.node)

	return JoinTokens(append(prefix, without(t.tokensOf(t.node), name)...))
}

// FunctionPointer splits a function pointer typedef into its result and
// parameter list text. ok is false for other typedefs.
func (t *Typedef) FunctionPointer() (result, params string, ok bool) {
	if nodeType(t.declNode) == "alias_declaration" {
		return "", "", false
	}

	fn := findSelfOrDescendant(t.node, "function_declarator")
	if fn.IsNull() {
		return "", "", false
	}

	// The result is the shared prefix plus any pointer operators outside
	// the function declarator.
	fnStart, _ := nodeRange(fn)
	resultTokens := append([]Token(nil), t.underlyingPrefix()...)
	resultTokens = append(resultTokens, before(t.tokensOf(t.node), fnStart)...)

	paramTokens := t.tokensOf(fn.ChildByFieldName("parameters"))
	if len(paramTokens) >= 2 {
		paramTokens = paramTokens[1 : len(paramTokens)-1]
	}

	return JoinTokens(resultTokens), JoinTokens(paramTokens), true
}

func findSelfOrDescendant(n sitter.Node, typ string) sitter.Node {
	if nodeType(n) == typ {
		return n
	}

	return findDescendant(n, typ)
}

// Variable is a global, static member or field.
type Variable struct {
	*Base
}

func init() {
	register(func(b *Base) Cursor { return &Variable{Base: b} }, KindVariable, KindField)
}

var (
	storageWords = map[string]bool{"static": true, "extern": true, "mutable": true, "inline": true, "constexpr": true, "thread_local": true}
	arrayDim     = regexp.MustCompile(`(\w)\[`)
)

func (v *Variable) prefix() []Token {
	typ := v.declNode.ChildByFieldName("type")

	switch nodeType(typ) {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		if !typ.ChildByFieldName("body").IsNull() {
			name := typ.ChildByFieldName("name")
			if name.IsNull() {
				kind := KindEnum
				if k, ok := specifierKinds[nodeType(typ)]; ok {
					kind = k
				}

				return []Token{{Text: anonymousName(kind, typ)}}
			}

			return v.tokensOf(name)
		}
	}

	decls := declarators(v.declNode)
	if len(decls) == 0 {
		return nil
	}

	start, _ := nodeRange(decls[0])

	return without(before(v.tokensOf(v.declNode), start), attributes(v.declNode)...)
}

// StorageClass is "static", "extern" or "".
func (v *Variable) StorageClass() string {
	for _, tok := range v.prefix() {
		if tok.Text == "static" || tok.Text == "extern" {
			return tok.Text
		}
	}

	return ""
}

// IsStatic reports a static variable or member.
func (v *Variable) IsStatic() bool { return v.StorageClass() == "static" }

// Type is the declared type without storage class: "const char [5]".
func (v *Variable) Type() string {
	var tokens []Token

	for _, tok := range v.prefix() {
		if !storageWords[tok.Text] {
			tokens = append(tokens, tok)
		}
	}

	_, name := analyzeDeclarator(v.node)
	skip := []sitter.Node{name}

	if nodeType(v.node) == "init_declarator" {
		skip = append(skip, v.node.ChildByFieldName("value"))
	}

	decl := v.tokensOf(v.node)
	if value := v.node.ChildByFieldName("value"); !value.IsNull() {
		start, _ := nodeRange(value)
		decl = dropTrailing(before(decl, start), func(t Token) bool { return t.Text == "=" })
	}

	tokens = append(tokens, without(decl, skip...)...)

	return arrayDim.ReplaceAllString(JoinTokens(tokens), "$1 [")
}

// IsConst reports a variable whose own value is const.
func (v *Variable) IsConst() bool {
	typ := v.Type()
	if strings.HasPrefix(typ, "const ") || strings.HasPrefix(typ, "constexpr ") {
		return !strings.ContainsAny(typ, "*&")
	}

	return strings.HasSuffix(strings.TrimSpace(strings.Split(typ, "[")[0]), "*const")
}

// Init is the initializer as written.
func (v *Variable) Init() string {
	if value := v.node.ChildByFieldName("value"); nodeType(v.node) == "init_declarator" && !value.IsNull() {
		return JoinTokens(v.tokensOf(value))
	}

	if value := v.declNode.ChildByFieldName("default_value"); !value.IsNull() {
		return JoinTokens(v.tokensOf(value))
	}

	return ""
}

// AccessSpecifier is "public:", "Q_SIGNALS:", "protected Q_SLOTS:" and so
// on. The spelling keeps the original words.
type AccessSpecifier struct {
	*Base
}

// ForwardDeclaration is a class declared without a body.
type ForwardDeclaration struct {
	*Base
}

// Unexposed is a construct the walker could not classify: unknown macro
// invocations, parse errors, alias templates.
type Unexposed struct {
	*Base
}

// UsingDeclaration brings a base member into scope: "using Base::name;".
type UsingDeclaration struct {
	*Base
}

func init() {
	register(func(b *Base) Cursor { return &AccessSpecifier{Base: b} }, KindAccessSpecifier)
	register(func(b *Base) Cursor { return &ForwardDeclaration{Base: b} }, KindForwardDeclaration)
	register(func(b *Base) Cursor { return &Unexposed{Base: b} }, KindUnexposed)
	register(func(b *Base) Cursor { return &UsingDeclaration{Base: b} }, KindUsingDeclaration)
}

// IsSignals reports a Qt signals section.
func (a *AccessSpecifier) IsSignals() bool {
	return a.name == "Q_SIGNALS" || a.name == "signals"
}

// IsSlots reports a Qt slots section.
func (a *AccessSpecifier) IsSlots() bool {
	return strings.HasSuffix(a.name, "Q_SLOTS") || strings.HasSuffix(a.name, " slots")
}

// Keyword is "class", "struct" or "union".
func (d *ForwardDeclaration) Keyword() string {
	switch nodeType(d.node) {
	case "struct_specifier":
		return "struct"
	case "union_specifier":
		return "union"
	default:
		return "class"
	}
}

// TemplateParams returns the template parameters of a forward-declared
// class template, nil otherwise.
func (d *ForwardDeclaration) TemplateParams() []*TemplateParameter {
	if d.templ.IsNull() {
		return nil
	}

	return templateParameters(d.tu, d, d.templ)
}

// Qualified is the used name as written: "Base::name".
func (u *UsingDeclaration) Qualified() string {
	tokens := u.tokensOf(u.node)
	if len(tokens) > 0 && tokens[0].Text == "using" {
		tokens = tokens[1:]
	}

	return JoinTokens(dropTrailing(tokens, func(t Token) bool { return t.Text == ";" }))
}

// ReferencesFunction guesses whether the using declaration names member
// functions. Bases declared in the same file are checked; otherwise Qt
// naming applies: functions start lower case, types upper case.
func (u *UsingDeclaration) ReferencesFunction() bool {
	qualified := u.Qualified()

	scope := ""
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		scope = qualified[:i]
	}

	if kind, ok := u.tu.memberKind(scope, u.name); ok {
		return kind.IsFunction()
	}

	for _, r := range u.name {
		return unicode.IsLower(r) || r == '_'
	}

	return false
}
