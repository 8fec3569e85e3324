// Package cxxast presents C++ headers parsed by tree-sitter as a tree of
// typed declaration cursors: containers, functions, enums, typedefs and
// variables, with the spellings SIP generation needs.
package cxxast

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/cpp"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/google/shlex"
)

var (
	// ErrParse reports a header that could not be read or parsed.
	ErrParse = errors.New("cxx parse failed")

	errPoolType  = errors.New("parser pool returned unexpected type")
	errNoRoot    = errors.New("no root node")
	errBadFlags  = errors.New("malformed compile flags")
	languageOnce sync.Once
	language     *sitter.Language
)

func cppLanguage() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(cpp.GetLanguage())
	})

	return language
}

// Flags are the compiler options that affect parsing.
type Flags struct {
	IncludePaths []string
	Defines      map[string]string
}

// ParseFlags picks -I, -isystem and -D options out of compiler arguments.
// Other options are ignored.
func ParseFlags(args []string) Flags {
	flags := Flags{Defines: map[string]string{}}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		value := func(prefix string) (string, bool) {
			if !strings.HasPrefix(arg, prefix) {
				return "", false
			}

			if rest := strings.TrimPrefix(arg, prefix); rest != "" {
				return rest, true
			}

			if i+1 < len(args) {
				i++

				return args[i], true
			}

			return "", false
		}

		if v, ok := value("-isystem"); ok {
			flags.IncludePaths = append(flags.IncludePaths, v)
		} else if v, ok := value("-I"); ok {
			flags.IncludePaths = append(flags.IncludePaths, v)
		} else if v, ok := value("-D"); ok {
			name, val, found := strings.Cut(v, "=")
			if !found {
				val = "1"
			}

			flags.Defines[name] = val
		}
	}

	return flags
}

// SplitFlags splits a compile flag string with shell quoting rules.
func SplitFlags(s string) ([]string, error) {
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadFlags, err)
	}

	return args, nil
}

// Include is one #include directive of a header.
type Include struct {
	Name   string
	System bool
	// Path is the resolved file, empty when no include path holds it.
	Path string
	Line int
}

// Parser parses headers. It is safe for concurrent use; each call takes a
// tree-sitter parser from a pool.
type Parser struct {
	pool   sync.Pool
	pp     *Preprocessor
	logger *slog.Logger
}

// NewParser returns a parser blanking the default Qt and export macros plus
// the extra macros given.
func NewParser(logger *slog.Logger, extraMacros, extraFunctionMacros []string) *Parser {
	if logger == nil {
		logger = slog.Default()
	}

	lang := cppLanguage()

	return &Parser{
		pool: sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(lang)

				return p
			},
		},
		pp:     NewPreprocessor(extraMacros, extraFunctionMacros),
		logger: logger,
	}
}

// ParseFile reads and parses the header at path.
func (p *Parser) ParseFile(ctx context.Context, path string, flags Flags) (*TranslationUnit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return p.Parse(ctx, path, content, flags)
}

// Parse parses content as the header at path. The caller must Close the
// returned unit.
func (p *Parser) Parse(ctx context.Context, path string, content []byte, flags Flags) (*TranslationUnit, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrParse, errPoolType)
	}

	defer p.pool.Put(tsParser)

	src := p.pp.Process(content, flags.Defines)

	tree, err := tsParser.ParseString(ctx, nil, src.Parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, errNoRoot)
	}

	tu := &TranslationUnit{
		path:   path,
		src:    src,
		tree:   tree,
		flags:  flags,
		logger: p.logger,
	}
	tu.Base = Base{tu: tu, kind: KindTranslationUnit, node: root, name: path}
	tu.scanPreprocessor(root)

	return tu, nil
}

// TranslationUnit is a parsed header and the root cursor of its
// declarations.
type TranslationUnit struct {
	Base

	path     string
	src      *Source
	tree     *sitter.Tree
	flags    Flags
	logger   *slog.Logger
	includes []Include
	// defines are the #define directives of the file with their offsets.
	defines map[string]int

	indexOnce sync.Once
	enumScope map[string]string
	enumTypes map[string]bool
	members   map[string]Kind
}

// Path is the header path as given to the parser.
func (tu *TranslationUnit) Path() string { return tu.path }

// Source is the header text before and after macro blanking.
func (tu *TranslationUnit) Source() *Source { return tu.src }

// Includes lists the #include directives in source order.
func (tu *TranslationUnit) Includes() []Include { return tu.includes }

// Close releases the syntax tree. Cursors must not be used afterwards.
func (tu *TranslationUnit) Close() {
	if tu.tree != nil {
		tu.tree.Close()
		tu.tree = nil
	}
}

// Children yields the top-level declarations.
func (tu *TranslationUnit) Children() iter.Seq[Cursor] {
	return func(yield func(Cursor) bool) {
		w := newWalker(tu, tu, AccessNone, yield)
		w.items(tu.node)
	}
}

// Extent implements Cursor.
func (tu *TranslationUnit) Extent() Extent {
	ext := tu.Base.Extent()
	ext.StartLine, ext.StartColumn = 1, 1

	return ext
}

func (tu *TranslationUnit) spell(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	tokens := collectTokens(tu.src, n, nil)

	switch nodeType(n) {
	case "operator_name":
		// "operator==", but "operator new".
		if len(tokens) > 1 && !tokens[1].IsWord() {
			var b strings.Builder
			for _, tok := range tokens {
				b.WriteString(tok.Text)
			}

			return b.String()
		}
	case "operator_cast":
		if list := findDescendant(n, "parameter_list"); !list.IsNull() {
			start, _ := nodeRange(list)
			tokens = before(tokens, start)
		}
	}

	return JoinTokens(tokens)
}

var (
	definedCall = regexp.MustCompile(`^(!)?\s*defined\s*\(?\s*(\w+)\s*\)?$`)
	integerCond = regexp.MustCompile(`^\d+$`)
)

func (tu *TranslationUnit) scanPreprocessor(root sitter.Node) {
	tu.defines = map[string]int{}

	var visit func(n sitter.Node)

	visit = func(n sitter.Node) {
		switch nodeType(n) {
		case "preproc_def", "preproc_function_def":
			name := n.ChildByFieldName("name")
			if _, seen := tu.defines[tu.src.Text(nodeRange(name))]; !seen {
				start, _ := nodeRange(n)
				tu.defines[tu.src.Text(nodeRange(name))] = start
			}
		case "preproc_include":
			tu.addInclude(n)
		}

		for idx := range n.NamedChildCount() {
			visit(n.NamedChild(idx))
		}
	}

	visit(root)
}

func (tu *TranslationUnit) addInclude(n sitter.Node) {
	path := n.ChildByFieldName("path")
	if path.IsNull() {
		return
	}

	text := tu.src.Text(nodeRange(path))
	inc := Include{Line: startLine(n)}

	switch {
	case strings.HasPrefix(text, "<"):
		inc.System = true
		inc.Name = strings.Trim(text, "<>")
	case strings.HasPrefix(text, `"`):
		inc.Name = strings.Trim(text, `"`)
	default:
		return
	}

	var dirs []string
	if !inc.System {
		dirs = append(dirs, filepath.Dir(tu.path))
	}

	for _, dir := range append(dirs, tu.flags.IncludePaths...) {
		candidate := filepath.Join(dir, inc.Name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			inc.Path = candidate

			break
		}
	}

	tu.includes = append(tu.includes, inc)
}

// defined reports whether name is defined by the flags or by a #define
// earlier in the file than n.
func (tu *TranslationUnit) defined(name string, n sitter.Node) bool {
	name = strings.TrimSpace(name)
	if _, ok := tu.flags.Defines[name]; ok {
		return true
	}

	start, _ := nodeRange(n)
	at, ok := tu.defines[name]

	return ok && at < start
}

// evaluate decides a #if condition. Only integer literals and defined()
// tests are understood; anything else selects the main branch.
func (tu *TranslationUnit) evaluate(cond string, n sitter.Node) bool {
	cond = strings.TrimSpace(cond)

	if integerCond.MatchString(cond) {
		return cond != "0"
	}

	if m := definedCall.FindStringSubmatch(cond); m != nil {
		return tu.defined(m[2], n) != (m[1] == "!")
	}

	if value, ok := tu.flags.Defines[cond]; ok {
		return value != "0"
	}

	return true
}

func (tu *TranslationUnit) buildIndex() {
	tu.enumScope = map[string]string{}
	tu.enumTypes = map[string]bool{}
	tu.members = map[string]Kind{}

	var visit func(c Cursor)

	visit = func(c Cursor) {
		for child := range c.Children() {
			switch child := child.(type) {
			case *Container:
				tu.members[QualifiedName(child)] = child.Kind()
				visit(child)
			case *Enum:
				tu.enumTypes[child.Spelling()] = true
				tu.enumTypes[QualifiedName(child)] = true

				scope := ""
				if parent := child.Parent(); parent != nil && parent.Kind() != KindTranslationUnit {
					scope = Parents(parent)
				}

				if child.IsScoped() {
					scope = QualifiedName(child)
				}

				for _, constant := range child.Constants() {
					if _, seen := tu.enumScope[constant.Spelling()]; !seen {
						tu.enumScope[constant.Spelling()] = scope
					}
				}
			case *Typedef:
				if strings.HasPrefix(child.Underlying(), "QFlags<") {
					tu.enumTypes[child.Spelling()] = true
					tu.enumTypes[QualifiedName(child)] = true
				}
			case *Function:
				tu.members[QualifiedName(child)] = child.Kind()
			}
		}
	}

	visit(tu)
}

// EnumScope returns the scope qualifying an enumerator declared in this
// file: "KFoo" for KFoo::Value, "" at namespace level.
func (tu *TranslationUnit) EnumScope(constant string) (string, bool) {
	tu.indexOnce.Do(tu.buildIndex)
	scope, ok := tu.enumScope[constant]

	return scope, ok
}

// IsEnum reports whether typ names an enum or QFlags type declared in this
// file.
func (tu *TranslationUnit) IsEnum(typ string) bool {
	tu.indexOnce.Do(tu.buildIndex)

	return tu.enumTypes[typ] || strings.HasPrefix(typ, "QFlags<")
}

func (tu *TranslationUnit) memberKind(scope, name string) (Kind, bool) {
	tu.indexOnce.Do(tu.buildIndex)
	kind, ok := tu.members[scope+"::"+name]

	return kind, ok
}
