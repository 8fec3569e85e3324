package cxxast

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultMacros are the object-like macros blanked before parsing. Headers use
// them for export decoration and Qt meta-object markup, none of which is C++
// the grammar understands.
var DefaultMacros = []string{
	"Q_OBJECT",
	"Q_GADGET",
	"Q_INVOKABLE",
	"Q_SCRIPTABLE",
	"Q_REQUIRED_RESULT",
	"Q_DECL_OVERRIDE",
	"Q_DECL_FINAL",
	"Q_DECL_CONSTEXPR",
	"Q_DECL_NOEXCEPT",
	"Q_DECL_NOTHROW",
	"Q_DECL_EXPORT",
	"Q_DECL_IMPORT",
	"Q_DECL_DEPRECATED",
	"Q_DECL_CONST_FUNCTION",
	"Q_NORETURN",
	"Q_NULLPTR_T",
}

// DefaultFunctionMacros are function-like macros blanked, arguments included.
var DefaultFunctionMacros = []string{
	"Q_DECLARE_PRIVATE",
	"Q_DECLARE_PRIVATE_D",
	"Q_DECLARE_PUBLIC",
	"Q_DISABLE_COPY",
	"Q_DISABLE_COPY_MOVE",
	"Q_PROPERTY",
	"Q_ENUM",
	"Q_ENUMS",
	"Q_ENUM_NS",
	"Q_FLAG",
	"Q_FLAGS",
	"Q_FLAG_NS",
	"Q_CLASSINFO",
	"Q_INTERFACES",
	"Q_PRIVATE_SLOT",
	"Q_PRIVATE_PROPERTY",
	"Q_NAMESPACE",
	"Q_DECLARE_METATYPE",
	"Q_DECLARE_TYPEINFO",
	"Q_DECLARE_INTERFACE",
	"Q_DECLARE_SHARED",
	"Q_DECLARE_OPERATORS_FOR_FLAGS",
	"Q_DECL_DEPRECATED_X",
	"K_PLUGIN_FACTORY",
	"K_PLUGIN_CLASS_WITH_JSON",
}

// Markers that make a class non-copyable.
const (
	macroDeclarePrivate  = "Q_DECLARE_PRIVATE"
	macroDeclarePrivateD = "Q_DECLARE_PRIVATE_D"
	macroDisableCopy     = "Q_DISABLE_COPY"
)

var (
	exportMacroRE   = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*_(?:EXPORT|NO_EXPORT|DEPRECATED|DEPRECATED_EXPORT|DEPRECATED_NO_EXPORT)\b`)
	deprecatedXRE   = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*_DEPRECATED_VERSION(?:_BELATED)?\b`)
	signalsRE       = regexp.MustCompile(`\b(?:Q_SIGNALS|signals)(\s*:)(?:[^:]|$)`)
	slotsRE         = regexp.MustCompile(`\b(public|protected|private)(\s+)(Q_SLOTS|slots)(\s*:)(?:[^:]|$)`)
	declareFlagsRE  = regexp.MustCompile(`\bQ_DECLARE_FLAGS\(\s*(\w+)\s*,\s*(\w+)\s*\)`)
	identifierStart = regexp.MustCompile(`[A-Za-z_]\w*`)
)

// blank records a region of the original source replaced by spaces.
type blank struct {
	start, end int
	name       string
}

// Source is a header as read from disk plus the offset-preserving rewrite the
// parser sees. Both have the same length and the same line breaks, so node
// offsets index either of them.
type Source struct {
	Original []byte
	Parsed   []byte
	blanks   []blank
}

// Preprocessor rewrites header text so tree-sitter can parse it.
type Preprocessor struct {
	macros    map[string]bool
	fnMacros  map[string]bool
	fnPattern *regexp.Regexp
	idPattern *regexp.Regexp
}

// NewPreprocessor builds a preprocessor blanking the default macros plus the
// extra object-like and function-like macro names given.
func NewPreprocessor(extraMacros, extraFunctionMacros []string) *Preprocessor {
	pp := &Preprocessor{
		macros:   make(map[string]bool),
		fnMacros: make(map[string]bool),
	}

	for _, m := range append(append([]string(nil), DefaultMacros...), extraMacros...) {
		pp.macros[m] = true
	}

	for _, m := range append(append([]string(nil), DefaultFunctionMacros...), extraFunctionMacros...) {
		pp.fnMacros[m] = true
	}

	pp.idPattern = compileAlternation(pp.macros, `\b(?:%s)\b`)
	pp.fnPattern = compileAlternation(pp.fnMacros, `\b(?:%s)\s*\(`)

	return pp
}

func compileAlternation(set map[string]bool, format string) *regexp.Regexp {
	if len(set) == 0 {
		return nil
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, regexp.QuoteMeta(name))
	}

	// Longest first so Q_DECLARE_PRIVATE_D wins over Q_DECLARE_PRIVATE.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}

		return names[i] < names[j]
	})

	return regexp.MustCompile(strings.Replace(format, "%s", strings.Join(names, "|"), 1))
}

// Process returns the parser view of original. Defines with an empty value
// (from -DNAME= flags) are blanked like object-like macros.
func (pp *Preprocessor) Process(original []byte, defines map[string]string) *Source {
	parsed := make([]byte, len(original))
	copy(parsed, original)

	src := &Source{Original: original, Parsed: parsed}

	// Q_DECLARE_FLAGS(Flags, Enum) fits in its own span as a typedef.
	for _, m := range declareFlagsRE.FindAllSubmatchIndex(original, -1) {
		src.rewriteDeclareFlags(m)
	}

	if pp.fnPattern != nil {
		for _, m := range pp.fnPattern.FindAllIndex(parsed, -1) {
			src.blankCall(m[0], m[1])
		}
	}

	for _, re := range []*regexp.Regexp{pp.idPattern, exportMacroRE} {
		if re == nil {
			continue
		}

		for _, m := range re.FindAllIndex(parsed, -1) {
			src.blankRange(m[0], m[1])
		}
	}

	for _, m := range deprecatedXRE.FindAllIndex(parsed, -1) {
		if m[1] < len(parsed) && parsed[m[1]] == '(' {
			src.blankCall(m[0], m[1]+1)
		} else {
			src.blankRange(m[0], m[1])
		}
	}

	src.blankDefines(defines)

	// "Q_SIGNALS:" parses as "public   :"; the access proxy reads the original.
	for _, m := range signalsRE.FindAllSubmatchIndex(parsed, -1) {
		src.replaceWord(m[0], m[2], "public")
	}

	for _, m := range slotsRE.FindAllSubmatchIndex(parsed, -1) {
		src.blankRange(m[6], m[7])
	}

	return src
}

func (s *Source) blankDefines(defines map[string]string) {
	for name, value := range defines {
		if value != "" || !identifierStart.MatchString(name) {
			continue
		}

		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		for _, m := range re.FindAllIndex(s.Parsed, -1) {
			s.blankRange(m[0], m[1])
		}
	}
}

func (s *Source) rewriteDeclareFlags(m []int) {
	span := s.Parsed[m[0]:m[1]]
	if strings.ContainsRune(string(span), '\n') {
		s.blankRange(m[0], m[1])

		return
	}

	flags := string(s.Original[m[2]:m[3]])
	enum := string(s.Original[m[4]:m[5]])
	text := "typedef QFlags<" + enum + "> " + flags + ";"

	if len(text) > len(span) {
		s.blankRange(m[0], m[1])

		return
	}

	copy(span, text)

	for i := len(text); i < len(span); i++ {
		span[i] = ' '
	}
}

// blankCall blanks a macro invocation. open points just past the "(".
func (s *Source) blankCall(start, open int) {
	depth := 1
	end := open

	for end < len(s.Parsed) && depth > 0 {
		switch s.Parsed[end] {
		case '(':
			depth++
		case ')':
			depth--
		}

		end++
	}

	if depth != 0 {
		return
	}

	// A trailing ";" would be an empty declaration inside a class body.
	tail := end
	for tail < len(s.Parsed) && (s.Parsed[tail] == ' ' || s.Parsed[tail] == '\t') {
		tail++
	}

	if tail < len(s.Parsed) && s.Parsed[tail] == ';' {
		end = tail + 1
	}

	s.blankRange(start, end)
}

func (s *Source) blankRange(start, end int) {
	name := identifierStart.FindString(string(s.Original[start:end]))
	s.blanks = append(s.blanks, blank{start: start, end: end, name: name})

	for i := start; i < end; i++ {
		if s.Parsed[i] != '\n' && s.Parsed[i] != '\r' {
			s.Parsed[i] = ' '
		}
	}
}

func (s *Source) replaceWord(start, end int, word string) {
	if end-start < len(word) {
		return
	}

	copy(s.Parsed[start:end], word)

	for i := start + len(word); i < end; i++ {
		s.Parsed[i] = ' '
	}
}

// blankedWithin reports the names of macros blanked inside [start, end).
func (s *Source) blankedWithin(start, end int) []string {
	var names []string

	for _, b := range s.blanks {
		if b.start >= start && b.end <= end {
			names = append(names, b.name)
		}
	}

	return names
}

// Text returns the original text of a byte range.
func (s *Source) Text(start, end int) string {
	if start < 0 || end > len(s.Original) || start > end {
		return ""
	}

	return string(s.Original[start:end])
}
