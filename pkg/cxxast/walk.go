package cxxast

import (
	"strconv"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// declaratorTypes are the node types that name what a declaration declares.
var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"type_identifier":          true,
	"qualified_identifier":     true,
	"destructor_name":          true,
	"operator_name":            true,
	"operator_cast":            true,
	"template_function":        true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"function_declarator":      true,
	"init_declarator":          true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

var specifierKinds = map[string]Kind{
	"class_specifier":  KindClass,
	"struct_specifier": KindStruct,
	"union_specifier":  KindUnion,
}

var anonymousPrefix = map[Kind]string{
	KindStruct: "struct",
	KindUnion:  "union",
	KindClass:  "class",
	KindEnum:   "enum",
}

// walker turns the declarations of one scope into cursors. Access
// specifiers update the access of the members that follow them, across
// preprocessor blocks.
type walker struct {
	tu      *TranslationUnit
	parent  Cursor
	access  Access
	yield   func(Cursor) bool
	stopped bool
}

func newWalker(tu *TranslationUnit, parent Cursor, access Access, yield func(Cursor) bool) *walker {
	return &walker{tu: tu, parent: parent, access: access, yield: yield}
}

func (w *walker) emit(b *Base) {
	if w.stopped {
		return
	}

	b.tu = w.tu
	b.parent = w.parent

	if b.access == AccessNone {
		b.access = w.access
	}

	if !w.yield(wrap(b)) {
		w.stopped = true
	}
}

// items walks the named children of a declaration list.
func (w *walker) items(list sitter.Node) {
	for idx := range list.NamedChildCount() {
		if w.stopped {
			return
		}

		w.item(list.NamedChild(idx))
	}
}

func (w *walker) item(n sitter.Node) {
	switch nodeType(n) {
	case "comment", "preproc_include", "preproc_def", "preproc_function_def", "preproc_call",
		"friend_declaration", "static_assert_declaration", "namespace_alias_definition",
		"using_directive", "template_instantiation":
		return
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
		w.conditional(n)
	case "namespace_definition":
		w.namespace(n)
	case "class_specifier", "struct_specifier", "union_specifier":
		w.specifier(n, n, sitter.Node{}, "")
	case "enum_specifier":
		w.enum(n, n, "")
	case "template_declaration":
		w.template(n)
	case "declaration", "field_declaration":
		w.declaration(n, n, sitter.Node{})
	case "function_definition", "inline_method_definition",
		"constructor_or_destructor_definition", "operator_cast_definition":
		w.functionDefinition(n, n, sitter.Node{})
	case "type_definition":
		w.typeDefinition(n)
	case "alias_declaration":
		w.alias(n)
	case "using_declaration":
		if w.parent.Kind() != KindNamespace && w.parent.Kind() != KindTranslationUnit {
			w.emit(&Base{kind: KindUsingDeclaration, node: n, name: usingName(w.tu, n)})
		}
	case "linkage_specification":
		body := n.ChildByFieldName("body")
		if nodeType(body) == "declaration_list" {
			w.items(body)
		} else if !body.IsNull() {
			w.item(body)
		}
	case "access_specifier":
		w.accessSpecifier(n)
	default:
		w.unexposed(n)
	}
}

func (w *walker) unexposed(n sitter.Node) {
	text := strings.TrimSpace(w.tu.src.Text(nodeRange(n)))
	if text == "" || w.tu.spell(n) == "" {
		return
	}

	w.tu.logger.Debug("unexposed declaration", "file", w.tu.path, "type", nodeType(n),
		"line", startLine(n))

	name := ""
	if first := identifierStart.FindString(text); first != "" {
		name = first
	}

	w.emit(&Base{kind: KindUnexposed, node: n, name: name})
}

func (w *walker) accessSpecifier(n sitter.Node) {
	start, _ := nodeRange(n)
	w.access = parseAccess(w.tu.spell(n))

	// The original text reaches up to the colon: "public Q_SLOTS", "Q_SIGNALS".
	end := start
	for end < len(w.tu.src.Original) && w.tu.src.Original[end] != ':' {
		end++
	}

	w.emit(&Base{
		kind:   KindAccessSpecifier,
		node:   n,
		access: w.access,
		name:   strings.Join(strings.Fields(w.tu.src.Text(start, end)), " "),
	})
}

// conditional descends into the branch of a preprocessor conditional that
// the compile flags select. Header guards and unknown conditions take the
// main branch.
func (w *walker) conditional(n sitter.Node) {
	switch nodeType(n) {
	case "preproc_else":
		w.branch(n, sitter.Node{})

		return
	case "preproc_ifdef":
		name := n.ChildByFieldName("name")
		defined := w.tu.defined(w.tu.src.Text(nodeRange(name)), n)

		w.takeBranch(n, defined == (firstToken(w.tu, n) == "#ifdef"), name)
	case "preproc_elifdef":
		name := n.ChildByFieldName("name")
		w.takeBranch(n, w.tu.defined(w.tu.src.Text(nodeRange(name)), n), name)
	default:
		cond := n.ChildByFieldName("condition")
		w.takeBranch(n, w.tu.evaluate(w.tu.src.Text(nodeRange(cond)), n), cond)
	}
}

func (w *walker) takeBranch(n sitter.Node, taken bool, skip sitter.Node) {
	alternative := n.ChildByFieldName("alternative")
	if taken {
		w.branch(n, skip, alternative)

		return
	}

	if !alternative.IsNull() {
		w.conditional(alternative)
	}
}

func (w *walker) branch(n sitter.Node, skip ...sitter.Node) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if sameNode(child, skip...) {
			continue
		}

		w.item(child)
	}
}

func sameNode(n sitter.Node, others ...sitter.Node) bool {
	for _, o := range others {
		if !o.IsNull() && o.StartByte() == n.StartByte() && o.EndByte() == n.EndByte() && nodeType(o) == nodeType(n) {
			return true
		}
	}

	return false
}

func firstToken(tu *TranslationUnit, n sitter.Node) string {
	if n.ChildCount() == 0 {
		return ""
	}

	return strings.TrimSpace(tu.src.Text(nodeRange(n.Child(0))))
}

func (w *walker) namespace(n sitter.Node) {
	name := n.ChildByFieldName("name")
	if name.IsNull() {
		w.tu.logger.Debug("skipping anonymous namespace", "file", w.tu.path, "line", startLine(n))

		return
	}

	w.emit(&Base{kind: KindNamespace, node: n, name: w.tu.spell(name)})
}

// specifier emits a class, struct or union. typedefName names an anonymous
// specifier after the typedef introducing it.
func (w *walker) specifier(n, outer, templ sitter.Node, typedefName string) {
	kind := specifierKinds[nodeType(n)]
	body := n.ChildByFieldName("body")
	nameNode := n.ChildByFieldName("name")

	if body.IsNull() {
		if nameNode.IsNull() {
			return
		}

		w.emit(&Base{kind: KindForwardDeclaration, node: n, outer: outer, templ: templ, name: w.tu.spell(nameNode)})

		return
	}

	b := &Base{kind: kind, node: n, outer: outer, templ: templ}

	switch {
	case !nameNode.IsNull():
		b.name = w.tu.spell(nameNode)
	case typedefName != "":
		b.name = typedefName
	default:
		b.name = anonymousName(kind, n)
		b.anonymous = true
	}

	if !templ.IsNull() && templateParameterCount(templ) > 0 {
		b.kind = KindClassTemplate
	}

	w.emit(b)
}

func anonymousName(kind Kind, n sitter.Node) string {
	return "__" + anonymousPrefix[kind] + strconv.Itoa(startLine(n))
}

func templateParameterCount(templ sitter.Node) uint32 {
	params := templ.ChildByFieldName("parameters")
	if params.IsNull() {
		return 0
	}

	return params.NamedChildCount()
}

func (w *walker) enum(n, outer sitter.Node, typedefName string) {
	body := n.ChildByFieldName("body")
	if body.IsNull() {
		w.tu.logger.Debug("skipping opaque enum", "file", w.tu.path, "line", startLine(n))

		return
	}

	b := &Base{kind: KindEnum, node: n, outer: outer}

	switch nameNode := n.ChildByFieldName("name"); {
	case !nameNode.IsNull():
		b.name = w.tu.spell(nameNode)
	case typedefName != "":
		b.name = typedefName
	default:
		b.name = anonymousName(KindEnum, n)
		b.anonymous = true
	}

	w.emit(b)
}

func (w *walker) template(n sitter.Node) {
	params := n.ChildByFieldName("parameters")

	for idx := range n.NamedChildCount() {
		inner := n.NamedChild(idx)
		if sameNode(inner, params) {
			continue
		}

		switch nodeType(inner) {
		case "class_specifier", "struct_specifier", "union_specifier":
			w.specifier(inner, n, n, "")
		case "declaration", "field_declaration":
			w.declaration(inner, n, n)
		case "function_definition", "inline_method_definition",
			"constructor_or_destructor_definition", "operator_cast_definition":
			w.functionDefinition(inner, n, n)
		case "alias_declaration":
			w.unexposed(n)
		case "requires_clause", "comment":
			continue
		default:
			w.tu.logger.Debug("skipping template", "file", w.tu.path, "type", nodeType(inner),
				"line", startLine(n))
		}

		return
	}
}

// declarators lists the declarator children of a declaration, in order.
func declarators(n sitter.Node) []sitter.Node {
	typ := n.ChildByFieldName("type")
	value := n.ChildByFieldName("default_value")

	var out []sitter.Node

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if !declaratorTypes[nodeType(child)] || sameNode(child, typ, value) {
			continue
		}

		if !typ.IsNull() && child.StartByte() < typ.EndByte() {
			continue
		}

		out = append(out, child)
	}

	return out
}

func (w *walker) declaration(n, outer, templ sitter.Node) {
	typ := n.ChildByFieldName("type")
	decls := declarators(n)

	switch nodeType(typ) {
	case "class_specifier", "struct_specifier", "union_specifier":
		if !typ.ChildByFieldName("body").IsNull() || len(decls) == 0 {
			w.specifier(typ, pick(len(decls) == 0, outer, typ), templ, "")
		}
	case "enum_specifier":
		if !typ.ChildByFieldName("body").IsNull() {
			w.enum(typ, pick(len(decls) == 0, outer, typ), "")
		}
	}

	if len(decls) == 0 {
		if typ.IsNull() {
			w.unexposed(n)
		}

		return
	}

	for _, d := range decls {
		w.declarator(n, outer, templ, d)
	}
}

func pick(cond bool, a, b sitter.Node) sitter.Node {
	if cond {
		return a
	}

	return b
}

func (w *walker) declarator(n, outer, templ, d sitter.Node) {
	fn, name := analyzeDeclarator(d)
	if name.IsNull() {
		w.unexposed(n)

		return
	}

	if fn.IsNull() {
		b := &Base{kind: KindVariable, node: d, outer: outer, name: w.tu.spell(name), declNode: n}
		if nodeType(n) == "field_declaration" && !hasStorageClass(w.tu, n, "static") {
			b.kind = KindField
		}

		w.emit(b)

		return
	}

	if nodeType(name) == "qualified_identifier" {
		// Out-of-line definitions and friend-style redeclarations.
		return
	}

	w.function(n, outer, templ, fn, name)
}

func (w *walker) functionDefinition(n, outer, templ sitter.Node) {
	d := n.ChildByFieldName("declarator")

	fn, name := analyzeDeclarator(d)
	if fn.IsNull() || name.IsNull() {
		w.unexposed(n)

		return
	}

	if nodeType(name) == "qualified_identifier" {
		w.tu.logger.Debug("skipping out-of-line definition", "file", w.tu.path,
			"name", w.tu.spell(name), "line", startLine(n))

		return
	}

	w.function(n, outer, templ, fn, name)
}

func (w *walker) function(n, outer, templ, fn, name sitter.Node) {
	spelling := w.tu.spell(name)
	kind := KindFunction

	if w.parent.Kind() != KindNamespace && w.parent.Kind() != KindTranslationUnit {
		kind = KindMethod

		switch {
		case nodeType(name) == "destructor_name":
			kind = KindDestructor
		case spelling == stripTemplateArgs(w.parent.Spelling()):
			kind = KindConstructor
		}
	}

	if !templ.IsNull() && kind != KindConstructor {
		kind = KindFunctionTemplate
	}

	w.emit(&Base{kind: kind, node: fn, outer: outer, templ: templ, name: spelling, declNode: n})
}

func stripTemplateArgs(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}

	return name
}

// analyzeDeclarator follows a declarator chain down to the declared name.
// fn is the function_declarator when the chain declares a function; a
// parenthesized inner declarator such as "(*cb)" declares a pointer instead.
func analyzeDeclarator(d sitter.Node) (fn, name sitter.Node) {
	for !d.IsNull() {
		switch nodeType(d) {
		case "function_declarator":
			inner := d.ChildByFieldName("declarator")
			if fn.IsNull() && nodeType(inner) != "parenthesized_declarator" {
				fn = d
			}

			d = inner
		case "operator_cast":
			if fn.IsNull() {
				fn = d
			}

			return fn, d
		case "pointer_declarator", "array_declarator", "init_declarator", "attributed_declarator":
			d = d.ChildByFieldName("declarator")
		case "reference_declarator", "parenthesized_declarator":
			d = lastNamedDeclarator(d)
		default:
			return fn, d
		}
	}

	return fn, d
}

func lastNamedDeclarator(n sitter.Node) sitter.Node {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if declaratorTypes[nodeType(child)] {
			return child
		}
	}

	return sitter.Node{}
}

func hasStorageClass(tu *TranslationUnit, n sitter.Node, keyword string) bool {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if nodeType(child) == "storage_class_specifier" && tu.spell(child) == keyword {
			return true
		}
	}

	return false
}

func (w *walker) typeDefinition(n sitter.Node) {
	typ := n.ChildByFieldName("type")
	decls := declarators(n)

	first := ""
	if len(decls) > 0 && nodeType(decls[0]) == "type_identifier" {
		first = w.tu.spell(decls[0])
	}

	// typedef struct { ... } Name; declares the struct as Name.
	switch nodeType(typ) {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		if !typ.ChildByFieldName("body").IsNull() {
			anonymous := typ.ChildByFieldName("name").IsNull()
			if nodeType(typ) == "enum_specifier" {
				w.enum(typ, pick(anonymous, n, typ), nameIf(anonymous, first))
			} else {
				w.specifier(typ, pick(anonymous, n, typ), sitter.Node{}, nameIf(anonymous, first))
			}

			if anonymous && first != "" {
				decls = decls[1:]
			}
		}
	}

	for _, d := range decls {
		_, name := analyzeDeclarator(d)
		if name.IsNull() {
			continue
		}

		w.emit(&Base{kind: KindTypedef, node: d, outer: n, name: w.tu.spell(name), declNode: n})
	}
}

func nameIf(anonymous bool, name string) string {
	if anonymous {
		return name
	}

	return ""
}

func (w *walker) alias(n sitter.Node) {
	name := n.ChildByFieldName("name")
	if name.IsNull() {
		w.unexposed(n)

		return
	}

	w.emit(&Base{kind: KindTypedef, node: n, outer: n, name: w.tu.spell(name), declNode: n})
}

func usingName(tu *TranslationUnit, n sitter.Node) string {
	tokens := collectTokens(tu.src, n, nil)
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].IsWord() {
			return tokens[i].Text
		}
	}

	return ""
}
