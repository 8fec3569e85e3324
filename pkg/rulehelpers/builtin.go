package rulehelpers

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var codeTemplates = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("sip").ParseFS(templateFS, "templates/*.tmpl"))
})

// render expands one of the named code templates.
func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := codeTemplates().ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}

	return b.String(), nil
}

// isEnumIn returns the enum lookup of the header ctx.Item belongs to.
func isEnumIn(ctx *rules.Context) func(string) bool {
	for _, c := range []cxxast.Cursor{ctx.Item, ctx.Container} {
		if c != nil && c.TranslationUnit() != nil {
			return c.TranslationUnit().IsEnum
		}
	}

	return nil
}

// atFileScope reports whether c, skipping namespaces, is the translation
// unit.
func atFileScope(c cxxast.Cursor) bool {
	for ; c != nil; c = c.Parent() {
		switch c.Kind() {
		case cxxast.KindNamespace:
		case cxxast.KindTranslationUnit:
			return true
		default:
			return false
		}
	}

	return true
}

type exception struct {
	Name    string
	SipName string
	PyName  string
}

func newException(fqn string) exception {
	sipName := strings.ReplaceAll(fqn, "::", "_")

	var py strings.Builder
	for _, word := range strings.Split(sipName, "_") {
		r, size := utf8.DecodeRuneInString(word)
		py.WriteRune(unicode.ToUpper(r))
		py.WriteString(word[size:])
	}

	return exception{Name: fqn, SipName: sipName, PyName: py.String()}
}

// rewriteException turns a class deriving from base into an %Exception.
func rewriteException(ctx *rules.Context, rec *sip.Record, base string) error {
	e := newException(cxxast.QualifiedName(ctx.Item))

	raise, err := render("raisecode", e)
	if err != nil {
		return err
	}

	rec.Name = e.Name
	rec.Decl = fmt.Sprintf("%%Exception %s(%s) /PyName=%s/", e.Name, base, e.PyName)
	rec.BaseSpecifiers = nil
	rec.TemplateParameters = nil
	rec.Body = raise

	return nil
}

func containerRewriteException(ctx *rules.Context, rec *sip.Record) error {
	base := "SIP_Exception"
	if len(rec.BaseSpecifiers) > 0 {
		base = rec.BaseSpecifiers[0]
	}

	return rewriteException(ctx, rec, base)
}

// containerRewriteStdException also declares the std:: base as an
// %Exception in module code, since SIP knows none of them.
func containerRewriteStdException(ctx *rules.Context, rec *sip.Record) error {
	var base string

	for _, b := range rec.BaseSpecifiers {
		if strings.HasPrefix(b, "std::") {
			base = b

			break
		}
	}

	if base == "" {
		return rules.SilentNoop
	}

	code, err := render("std_exception", newException(base))
	if err != nil {
		return err
	}

	rec.ModuleCode.Set(base, sip.GeneratedFor(base, ctx.Rule, "standard exception")+code)

	return rewriteException(ctx, rec, base)
}

func registerBuiltins(r *Registry) {
	r.MustRegister(Descriptor{
		Name: "container_rewrite_exception", Description: "declare the class as an %Exception", Stages: containerStage,
	}, fixed(containerRewriteException))
	r.MustRegister(Descriptor{
		Name:        "container_rewrite_std_exception",
		Description: "declare the class and its std:: base as %Exceptions",
		Stages:      containerStage,
	}, fixed(containerRewriteStdException))
	r.MustRegister(Descriptor{
		Name:        "function_uses_templates",
		Description: "generate %MethodCode for a function using templates",
		Stages:      methodCodeStages,
	}, fixed(functionUsesTemplates))

	registerVariables(r)
	registerMappedTypes(r)
}
