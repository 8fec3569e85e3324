package sip

import (
	"strings"
)

// Pad is the indentation for a nesting level.
func Pad(level int) string {
	if level <= 0 {
		return ""
	}

	return strings.Repeat("    ", level)
}

// Dedent removes the whitespace prefix common to every non-blank line,
// trims the result and terminates it with a newline. Code written in YAML
// block scalars or rule arguments goes through it before injection.
func Dedent(code string) string {
	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")
	prefix := -1

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))
		if prefix < 0 || indent < prefix {
			prefix = indent
		}
	}

	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			lines[i] = ""
		case prefix > 0:
			lines[i] = line[prefix:]
		}
	}

	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return ""
	}

	return out + "\n"
}

// Block wraps code in a SIP directive: "%MethodCode\n<code>%End\n".
func Block(directive, code string) string {
	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}

	return directive + "\n" + code + "%End\n"
}

// DecomposeTemplate splits "QMap<QString, QList<int>>" into "QMap" and its
// top-level arguments. args is nil when text is not a template.
func DecomposeTemplate(text string) (name string, args []string) {
	open := strings.IndexByte(text, '<')
	closing := strings.LastIndexByte(text, '>')

	if open < 0 || closing < open {
		return strings.TrimSpace(text), nil
	}

	name = strings.TrimSpace(text[:open])
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[len(fields)-1]
	}

	inner := text[open+1 : closing]
	depth, left := 0, 0

	for i, c := range inner {
		switch c {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[left:i]))
				left = i + 1
			}
		}
	}

	return name, append(args, strings.TrimSpace(inner[left:]))
}

var typeKeywords = []string{"static ", "extern ", "const ", "volatile ", "mutable ", "constexpr "}

// DecomposeType splits a variable type such as "static const char *[5]"
// into its leading keywords "static const ", the base type "char", the
// declarator operators "*" and the array dimensions "[5]".
func DecomposeType(decl string) (prefixes, typ, operators, dims string) {
	rest := strings.TrimSpace(decl)

	depth := 0

	for i, c := range rest {
		if c == '<' {
			depth++
		} else if c == '>' {
			depth--
		} else if c == '[' && depth == 0 {
			rest, dims = strings.TrimSpace(rest[:i]), strings.ReplaceAll(rest[i:], " ", "")

			break
		}
	}

	for stripped := true; stripped; {
		stripped = false

		for _, kw := range typeKeywords {
			if strings.HasPrefix(rest, kw) {
				prefixes += kw
				rest = strings.TrimSpace(rest[len(kw):])
				stripped = true
			}
		}
	}

	end := len(rest)
	for end > 0 && strings.ContainsRune("*& ", rune(rest[end-1])) {
		end--
	}

	return prefixes, strings.TrimSpace(rest[:end]), strings.ReplaceAll(rest[end:], " ", ""), dims
}
