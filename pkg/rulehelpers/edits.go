package rulehelpers

import (
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// Generic edits parameterised from the rule's args.

func annotate(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		for _, a := range args {
			rec.Annotations.Add(a)
		}

		return nil
	}, nil
}

func unannotate(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		for _, a := range args {
			rec.Annotations.Remove(a)
		}

		return nil
	}, nil
}

func setDecl(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		rec.Decl = args[0]

		return nil
	}, nil
}

// replaceInDecl rewrites every occurrence of args[0] in the declaration.
func replaceInDecl(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		rec.Decl = strings.ReplaceAll(rec.Decl, args[0], args[1])

		return nil
	}, nil
}

func setFnResult(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		rec.FnResult = args[0]

		return nil
	}, nil
}

func setInit(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		rec.Init = args[0]

		return nil
	}, nil
}

// addCode appends literal SIP code; methodcode and typecode generators use
// it to share one snippet between several keys.
func addCode(args []string) (rules.Handler, error) {
	code := strings.Join(args, "\n")
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}

	return func(_ *rules.Context, rec *sip.Record) error {
		rec.Code += code

		return nil
	}, nil
}

func registerEdits(r *Registry) {
	annotatable := []rules.Stage{
		rules.StageContainer, rules.StageForwardDeclaration, rules.StageFunction,
		rules.StageParameter, rules.StageTypedef, rules.StageVariable,
	}
	declared := []rules.Stage{
		rules.StageParameter, rules.StageTypedef, rules.StageVariable, rules.StageUnexposed,
	}
	coded := []rules.Stage{
		rules.StageContainer, rules.StageFunction, rules.StageTypedef, rules.StageVariable,
		rules.StageMethodCode, rules.StageTypeCode, rules.StageModuleCode,
	}

	r.MustRegister(Descriptor{
		Name:        "annotate",
		Description: "add SIP annotations",
		Stages:      annotatable,
		MinArgs:     1,
		MaxArgs:     Unlimited,
	}, annotate)
	r.MustRegister(Descriptor{
		Name:        "unannotate",
		Description: "remove SIP annotations",
		Stages:      annotatable,
		MinArgs:     1,
		MaxArgs:     Unlimited,
	}, unannotate)
	r.MustRegister(Descriptor{
		Name:        "set_decl",
		Description: "replace the declaration",
		Stages:      declared,
		MinArgs:     1,
		MaxArgs:     1,
	}, setDecl)
	r.MustRegister(Descriptor{
		Name:        "replace_in_decl",
		Description: "rewrite text inside the declaration",
		Stages:      declared,
		MinArgs:     2,
		MaxArgs:     2,
	}, replaceInDecl)
	r.MustRegister(Descriptor{
		Name:        "set_fn_result",
		Description: "replace the function result",
		Stages:      functionStage,
		MinArgs:     1,
		MaxArgs:     1,
	}, setFnResult)
	r.MustRegister(Descriptor{
		Name:        "set_init",
		Description: "replace the default value",
		Stages:      parameterStage,
		MinArgs:     1,
		MaxArgs:     1,
	}, setInit)
	r.MustRegister(Descriptor{
		Name:        "add_code",
		Description: "append literal SIP code",
		Stages:      coded,
		MinArgs:     1,
		MaxArgs:     Unlimited,
	}, addCode)
}
