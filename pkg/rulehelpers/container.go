package rulehelpers

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

func discardQSharedDataBase(_ *rules.Context, rec *sip.Record) error {
	rec.BaseSpecifiers = slices.DeleteFunc(rec.BaseSpecifiers, func(b string) bool { return b == "QSharedData" })

	return nil
}

func markAbstract(_ *rules.Context, rec *sip.Record) error {
	rec.Annotations.Add("Abstract")

	return nil
}

func markExternal(_ *rules.Context, rec *sip.Record) error {
	rec.Annotations.Add("External")

	return nil
}

func discardTemplatedBases(_ *rules.Context, rec *sip.Record) error {
	rec.BaseSpecifiers = slices.DeleteFunc(rec.BaseSpecifiers, func(b string) bool { return strings.Contains(b, "<") })

	return nil
}

// fakeDerivedClass defines sipA_B as A::B so hand-written code can name
// the derived class SIP does not generate.
func fakeDerivedClass(ctx *rules.Context, rec *sip.Record) error {
	clazz := cxxast.QualifiedName(ctx.Item)
	define := fmt.Sprintf("#define sip%s %s\n", strings.ReplaceAll(clazz, "::", "_"), clazz)
	rec.Code += sip.GeneratedFor(rec.Name, ctx.Rule, "fake derived class") + sip.Block("%TypeHeaderCode", define)

	return nil
}

func makeUnassignable(ctx *rules.Context, rec *sip.Record) error {
	clazz := cxxast.QualifiedName(ctx.Item)
	rec.Body = sip.GeneratedFor(rec.Name, ctx.Rule, "dummy assignment") +
		fmt.Sprintf("    private:\n        %s &operator=(const %s &);\n", clazz, clazz) + rec.Body

	return nil
}

func makeUncopyable(ctx *rules.Context, rec *sip.Record) error {
	name := ctx.Item.Spelling()
	rec.Body = sip.GeneratedFor(rec.Name, ctx.Rule, "dummy copy constructor") +
		fmt.Sprintf("    private:\n        %s(const %s &);\n", name, name) + rec.Body

	return nil
}

var supplementaryAlias = regexp.MustCompile(`typedef .+ __\w+?(\d+)_t;`)

// addTypedefs declares C++ aliases for types SIP cannot spell, "typedef
// QList<int> __Codec0_t;", and uses them in the body. A type that already
// has an alias is left alone.
func addTypedefs(args []string) (rules.Handler, error) {
	return func(ctx *rules.Context, rec *sip.Record) error {
		spelling := ctx.Item.Spelling()
		next := len(supplementaryAlias.FindAllString(rec.Code, -1))

		var lines strings.Builder

		for _, value := range args {
			if strings.Contains(rec.Code, "typedef "+value+" __"+spelling) {
				continue
			}

			alias := fmt.Sprintf("__%s%d_t", spelling, next)
			next++

			fmt.Fprintf(&lines, "    typedef %s %s;\n", value, alias)
			rec.Body = strings.ReplaceAll(rec.Body, value, alias)
		}

		if lines.Len() == 0 {
			return nil
		}

		rec.Code += sip.GeneratedFor(rec.Name, ctx.Rule, "supplementary typedefs") +
			sip.Block("%TypeHeaderCode", lines.String())

		return nil
	}, nil
}

// discardDuplicatePtr keeps "typedef QSharedPointer<Category> CategoryPtr"
// only in the header named after it, category.h.
func discardDuplicatePtr(ctx *rules.Context, rec *sip.Record) error {
	base := filepath.Base(ctx.Filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if capitalize(stem)+"Ptr" != ctx.Item.Spelling() {
		rec.Discard()
	}

	return nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}

	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func registerContainers(r *Registry) {
	r.MustRegister(Descriptor{
		Name: "container_discard_QSharedData_base", Description: "drop the QSharedData base", Stages: containerStage,
	}, fixed(discardQSharedDataBase))
	r.MustRegister(Descriptor{
		Name: "container_mark_abstract", Description: "annotate the container /Abstract/", Stages: containerStage,
	}, fixed(markAbstract))
	r.MustRegister(Descriptor{
		Name: "forward_declaration_mark_external", Description: "annotate the declaration /External/", Stages: forwardStage,
	}, fixed(markExternal))
	r.MustRegister(Descriptor{
		Name:        "container_mark_forward_declaration_external",
		Description: "annotate the declaration /External/",
		Stages:      forwardStage,
	}, fixed(markExternal))
	r.MustRegister(Descriptor{
		Name: "container_discard_templated_bases", Description: "drop template bases", Stages: containerStage,
	}, fixed(discardTemplatedBases))
	r.MustRegister(Descriptor{
		Name: "container_fake_derived_class", Description: "define sipA_B for hand-written code", Stages: containerStage,
	}, fixed(fakeDerivedClass))
	r.MustRegister(Descriptor{
		Name: "container_make_unassignable", Description: "add a private assignment operator", Stages: containerStage,
	}, fixed(makeUnassignable))
	r.MustRegister(Descriptor{
		Name: "container_make_uncopyable", Description: "add a private copy constructor", Stages: containerStage,
	}, fixed(makeUncopyable))
	r.MustRegister(Descriptor{
		Name:        "container_add_typedefs",
		Description: "alias types SIP cannot spell",
		Stages:      containerStage,
		MinArgs:     1,
		MaxArgs:     Unlimited,
	}, addTypedefs)
	r.MustRegister(Descriptor{
		Name: "typedef_discard_duplicate_ptr", Description: "keep FooPtr only in foo.h", Stages: typedefStage,
	}, fixed(discardDuplicatePtr))
}
