package rulehelpers

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

func parameterIn(_ *rules.Context, rec *sip.Record) error {
	rec.Annotations.Add("In")

	return nil
}

func parameterOut(_ *rules.Context, rec *sip.Record) error {
	rec.Annotations.Add("Out")

	return nil
}

// parameterTransferToParent hands ownership to the C++ parent. Static
// functions have no "this" to transfer to.
func parameterTransferToParent(ctx *rules.Context, rec *sip.Record) error {
	if ctx.Function != nil && ctx.Function.IsStatic() {
		rec.Annotations.Add("Transfer")
	} else {
		rec.Annotations.Add("TransferThis")
	}

	return nil
}

var modeT = regexp.MustCompile(`\bmode_t\b`)

func parameterModeTAsInt(_ *rules.Context, rec *sip.Record) error {
	rec.Decl = modeT.ReplaceAllString(rec.Decl, "unsigned int")

	return nil
}

var classEnum = regexp.MustCompile(`\benum\s+(?:class|struct)\s+`)

// parameterStripClassEnum turns "enum class Mode m" into "Mode m".
func parameterStripClassEnum(_ *rules.Context, rec *sip.Record) error {
	rec.Decl = classEnum.ReplaceAllString(rec.Decl, "")

	return nil
}

func parameterRemoveDefault(_ *rules.Context, rec *sip.Record) error {
	rec.Init = ""

	return nil
}

var bareIdentifier = regexp.MustCompile(`(?i)(?:[a-z_][a-z_0-9]*::)*[a-z_][a-z_0-9]*`)

// qualifyEnumInitialiser prefixes enumerators in the default value with
// their scope: args[0] when given, otherwise the scope of the parameter's
// type, so "Mode m = Fast" with type "KFoo::Mode" becomes "KFoo::Fast".
func qualifyEnumInitialiser(args []string) (rules.Handler, error) {
	return func(_ *rules.Context, rec *sip.Record) error {
		scope := ""
		if len(args) > 0 {
			scope = args[0]
		} else {
			_, typ, _, _ := sip.DecomposeType(rec.Decl)
			if fields := strings.Fields(typ); len(fields) > 0 {
				typ = fields[0]
			}

			if i := strings.LastIndex(typ, "::"); i >= 0 {
				scope = typ[:i]
			}
		}

		if scope == "" || rec.Init == "" {
			return nil
		}

		rec.Init = bareIdentifier.ReplaceAllStringFunc(rec.Init, func(id string) string {
			if strings.Contains(id, "::") || isLiteralKeyword(id) {
				return id
			}

			return scope + "::" + id
		})

		return nil
	}, nil
}

func isLiteralKeyword(id string) bool {
	switch id {
	case "true", "false", "nullptr", "NULL", "Q_NULLPTR":
		return true
	}

	return false
}

func registerParameters(r *Registry) {
	for _, p := range []struct {
		name, desc string
		h          rules.Handler
	}{
		{"parameter_in", "mark the parameter /In/", parameterIn},
		{"parameter_out", "mark the parameter /Out/", parameterOut},
		{"parameter_transfer_to_parent", "pass ownership to the parent", parameterTransferToParent},
		{"param_rewrite_mode_t_as_int", "spell mode_t as unsigned int", parameterModeTAsInt},
		{"parameter_strip_class_enum", "drop the class keyword of a scoped enum", parameterStripClassEnum},
		{"parameter_remove_default", "drop the default value", parameterRemoveDefault},
	} {
		r.MustRegister(Descriptor{Name: p.name, Description: p.desc, Stages: parameterStage}, fixed(p.h))
	}

	r.MustRegister(Descriptor{
		Name:        "parameter_qualify_enum_initialiser",
		Description: "qualify enumerators in the default value",
		Stages:      parameterStage,
		MaxArgs:     1,
	}, qualifyEnumInitialiser)
}
