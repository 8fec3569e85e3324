package cxxast

import (
	"iter"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/sipgen/pkg/safeconv"
)

// Cursor is a handle to one declaration of a parsed header.
type Cursor interface {
	Kind() Kind
	// Spelling is the bare name: "Foo", "bar", "__enum42".
	Spelling() string
	// DisplayName qualifies the spelling the way diagnostics show it:
	// "bar(int)" for functions, "enum __enum42" for anonymous enums.
	DisplayName() string
	Extent() Extent
	// Parent is the semantic parent, nil for the translation unit.
	Parent() Cursor
	TranslationUnit() *TranslationUnit
	Children() iter.Seq[Cursor]
	Tokens() []Token
	// Text is the original source text of the extent.
	Text() string
	Key() Key
	Access() Access
}

// Extent is a source region with 1-based lines and columns.
type Extent struct {
	File        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	StartByte   int
	EndByte     int
}

// Key identifies a cursor across re-parses of the same file.
type Key struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Spelling  string
}

// Base carries what every cursor knows. Proxies embed it.
type Base struct {
	tu     *TranslationUnit
	parent Cursor
	kind   Kind
	access Access
	name   string
	// anonymous marks a synthesized name such as "__enum42".
	anonymous bool

	// node is the syntax node the cursor is about: a specifier, a
	// declarator, a parameter. outer is the enclosing declaration whose
	// extent the cursor reports (template_declaration included).
	node  sitter.Node
	outer sitter.Node
	// templ is the template_declaration wrapping the cursor, if any.
	templ sitter.Node
	// declNode is the declaration holding a declarator: its type and
	// specifiers apply to node.
	declNode sitter.Node
}

// Kind implements Cursor.
func (b *Base) Kind() Kind { return b.kind }

// Spelling implements Cursor.
func (b *Base) Spelling() string { return b.name }

// DisplayName implements Cursor.
func (b *Base) DisplayName() string { return b.name }

// Parent implements Cursor.
func (b *Base) Parent() Cursor { return b.parent }

// TranslationUnit implements Cursor.
func (b *Base) TranslationUnit() *TranslationUnit { return b.tu }

// Access implements Cursor.
func (b *Base) Access() Access { return b.access }

// Children implements Cursor. Leaf cursors have none.
func (b *Base) Children() iter.Seq[Cursor] {
	return func(func(Cursor) bool) {}
}

// Extent implements Cursor.
func (b *Base) Extent() Extent {
	n := b.extentNode()
	start, end := n.StartPoint(), n.EndPoint()
	startByte, endByte := nodeRange(n)

	return Extent{
		File:        b.tu.path,
		StartLine:   safeconv.MustUintToInt(start.Row) + 1,
		StartColumn: safeconv.MustUintToInt(start.Column) + 1,
		EndLine:     safeconv.MustUintToInt(end.Row) + 1,
		EndColumn:   safeconv.MustUintToInt(end.Column) + 1,
		StartByte:   startByte,
		EndByte:     endByte,
	}
}

// Key implements Cursor.
func (b *Base) Key() Key {
	ext := b.Extent()

	return Key{
		File:      ext.File,
		StartLine: ext.StartLine,
		StartCol:  ext.StartColumn,
		EndLine:   ext.EndLine,
		EndCol:    ext.EndColumn,
		Spelling:  b.name,
	}
}

// Tokens implements Cursor.
func (b *Base) Tokens() []Token {
	return collectTokens(b.tu.src, b.extentNode(), nil)
}

// Text implements Cursor.
func (b *Base) Text() string {
	start, end := nodeRange(b.extentNode())

	return b.tu.src.Text(start, end)
}

func (b *Base) extentNode() sitter.Node {
	if !b.outer.IsNull() {
		return b.outer
	}

	return b.node
}

func (b *Base) tokensOf(n sitter.Node) []Token {
	return collectTokens(b.tu.src, n, nil)
}

func (b *Base) textOf(n sitter.Node) string {
	start, end := nodeRange(n)

	return strings.TrimSpace(string(b.tu.src.Parsed[start:end]))
}

// factory builds the proxy for a cursor kind.
type factory func(*Base) Cursor

// registry maps each cursor kind to the proxy constructor handling it.
var registry = map[Kind]factory{}

func register(f factory, kinds ...Kind) {
	for _, k := range kinds {
		registry[k] = f
	}
}

// wrap returns the typed proxy registered for the cursor's kind, or the
// base cursor when no proxy claims the kind.
func wrap(b *Base) Cursor {
	if f, ok := registry[b.kind]; ok {
		return f(b)
	}

	return b
}

// Parents renders the scope of container as "A::B". At the top level it is
// the basename of the translation unit.
func Parents(container Cursor) string {
	var names []string

	for c := container; c != nil && c.Kind() != KindTranslationUnit; c = c.Parent() {
		names = append(names, c.Spelling())
	}

	if len(names) == 0 {
		if container == nil {
			return ""
		}

		return filepath.Base(container.TranslationUnit().Path())
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	return strings.Join(names, "::")
}

// QualifiedName returns "A::B::name" for c, without the file basename.
func QualifiedName(c Cursor) string {
	parent := c.Parent()
	if parent == nil || parent.Kind() == KindTranslationUnit {
		return c.Spelling()
	}

	return Parents(parent) + "::" + c.Spelling()
}

// Describe renders a cursor for trace comments and logs:
// "CXX_METHOD on line 12 'KCodecs::Codec::encode'".
func Describe(c Cursor) string {
	scope := ""
	if parent := c.Parent(); parent != nil {
		scope = Parents(parent)
	}

	return c.Kind().String() + " on line " + strconv.Itoa(c.Extent().StartLine) + " '" + scope + "::" + c.Spelling() + "'"
}
