package cxxast

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/sipgen/pkg/safeconv"
)

// Token is one lexical token of the original source.
type Token struct {
	Text   string
	Offset int
	Type   string
}

// IsWord reports whether the token is an identifier, keyword or literal.
func (t Token) IsWord() bool {
	if t.Text == "" {
		return false
	}

	c := t.Text[0]

	return c == '_' || c == '"' || c == '\'' || isAlnum(c)
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// atomicNodes are subtrees reported as a single token.
var atomicNodes = map[string]bool{
	"string_literal":       true,
	"raw_string_literal":   true,
	"char_literal":         true,
	"concatenated_string":  true,
	"number_literal":       true,
	"system_lib_string":    true,
	"user_defined_literal": true,
}

// nodeType is n.Type() for a node that may be null. Field lookups return a
// null node when the field is absent, and tree-sitter crashes on those.
func nodeType(n sitter.Node) string {
	if n.IsNull() {
		return ""
	}

	return n.Type()
}

// startLine is the 1-based line n starts on.
func startLine(n sitter.Node) int {
	return safeconv.MustUintToInt(n.StartPoint().Row) + 1
}

func nodeRange(n sitter.Node) (int, int) {
	return safeconv.MustUintToInt(n.StartByte()), safeconv.MustUintToInt(n.EndByte())
}

// collectTokens appends the leaf tokens of n, reading text from src. Comments
// are dropped; so is any leaf whose original text was blanked by the
// preprocessor.
func collectTokens(src *Source, n sitter.Node, out []Token) []Token {
	if n.IsNull() || nodeType(n) == "comment" {
		return out
	}

	if n.ChildCount() == 0 || atomicNodes[nodeType(n)] {
		start, end := nodeRange(n)
		text := strings.TrimSpace(string(src.Parsed[start:end]))

		if text == "" {
			return out
		}

		return append(out, Token{Text: text, Offset: start, Type: nodeType(n)})
	}

	for idx := range n.ChildCount() {
		out = collectTokens(src, n.Child(idx), out)
	}

	return out
}

// without drops tokens whose offset lies in any of the given node ranges.
func without(tokens []Token, nodes ...sitter.Node) []Token {
	out := tokens[:0:0]

	for _, tok := range tokens {
		keep := true

		for _, n := range nodes {
			if n.IsNull() {
				continue
			}

			start, end := nodeRange(n)
			if tok.Offset >= start && tok.Offset < end {
				keep = false

				break
			}
		}

		if keep {
			out = append(out, tok)
		}
	}

	return out
}

// before keeps tokens starting before offset.
func before(tokens []Token, offset int) []Token {
	out := tokens[:0:0]

	for _, tok := range tokens {
		if tok.Offset < offset {
			out = append(out, tok)
		}
	}

	return out
}

// dropTrailing removes trailing tokens while drop reports true.
func dropTrailing(tokens []Token, drop func(Token) bool) []Token {
	for len(tokens) > 0 && drop(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}

	return tokens
}

var binaryOperators = map[string]bool{
	"|": true, "||": true, "&&": true, "+": true, "-": true, "/": true, "%": true,
	"^": true, "<<": true, "==": true, "!=": true, "<=": true, ">=": true, "?": true, "=": true,
}

var noSpaceAfter = map[string]bool{
	"(": true, "[": true, "<": true, "::": true, "~": true, "!": true, ".": true, "->": true, "{": true,
}

var noSpaceBefore = map[string]bool{
	",": true, ")": true, "]": true, ">": true, ">>": true, ";": true, "::": true, "<": true,
	"[": true, ".": true, "->": true, "}": true, "...": true,
}

// JoinTokens renders tokens the way libclang spells types and expressions:
// "const QString &", "QMap<QString, int>", "void (*)(int)", "A | B".
func JoinTokens(tokens []Token) string {
	var b strings.Builder

	for i, tok := range tokens {
		if i > 0 && needSpace(tokens, i) {
			b.WriteByte(' ')
		}

		b.WriteString(tok.Text)
	}

	return b.String()
}

func needSpace(tokens []Token, i int) bool {
	prev, cur := tokens[i-1].Text, tokens[i].Text

	switch {
	case prev == ",":
		return true
	case noSpaceAfter[prev]:
		return false
	case cur == "(":
		// Only function pointer declarators keep a space: "void (*)(int)".
		return tokens[i-1].IsWord() && i+1 < len(tokens) && isPointerOp(tokens[i+1].Text)
	case noSpaceBefore[cur]:
		return false
	case binaryOperators[cur]:
		return true
	case binaryOperators[prev]:
		return !isUnary(tokens, i-1)
	case isPointerOp(cur):
		return !isPointerOp(prev) && prev != "("
	case isPointerOp(prev):
		return false
	default:
		return true
	}
}

func isPointerOp(text string) bool {
	return text == "*" || text == "&" || text == "&&" || text == "^"
}

// isUnary reports whether the operator at i has no left operand.
func isUnary(tokens []Token, i int) bool {
	op := tokens[i].Text
	if op != "-" && op != "+" {
		return false
	}

	if i == 0 {
		return true
	}

	prev := tokens[i-1].Text

	return prev == "(" || prev == "," || prev == "=" || binaryOperators[prev]
}

// Tokenize splits a C++ fragment into tokens. It exists for text produced by
// rules and for extents read back from the original source; parsed cursors
// use the tree-sitter leaves instead.
func Tokenize(text string) []Token {
	var tokens []Token

	for i := 0; i < len(text); {
		c := text[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '_' || isAlnum(c):
			j := i + 1
			for j < len(text) && (text[j] == '_' || isAlnum(text[j])) {
				j++
			}

			tokens = append(tokens, Token{Text: text[i:j], Offset: i})
			i = j
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(text) && text[j] != c {
				if text[j] == '\\' {
					j++
				}

				j++
			}

			j = min(j+1, len(text))
			tokens = append(tokens, Token{Text: text[i:j], Offset: i})
			i = j
		default:
			n := punctuatorLength(text[i:])
			tokens = append(tokens, Token{Text: text[i : i+n], Offset: i})
			i += n
		}
	}

	return tokens
}

var punctuators = []string{
	"...", "<<=", ">>=", "->*", "::", "->", "&&", "||", "<<", "==", "!=", "<=", ">=",
	"++", "--", "+=", "-=", "*=", "/=", "|=", "&=", "^=",
}

func punctuatorLength(s string) int {
	for _, p := range punctuators {
		if strings.HasPrefix(s, p) {
			return len(p)
		}
	}

	return 1
}

// NormalizeType re-spells a type written by hand so it compares equal to the
// spelling of parsed types.
func NormalizeType(text string) string {
	return JoinTokens(Tokenize(text))
}
