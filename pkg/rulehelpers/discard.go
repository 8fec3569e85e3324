package rulehelpers

import (
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

func discard(_ *rules.Context, rec *sip.Record) error {
	rec.Discard()

	return nil
}

// noop leaves the record untouched; the database logs the rule as having
// done nothing.
func noop(*rules.Context, *sip.Record) error {
	return nil
}

func silentNoop(*rules.Context, *sip.Record) error {
	return rules.SilentNoop
}

// discardImpl drops implementations: declarations are indented, bodies
// written out in a header start in column 1.
func discardImpl(ctx *rules.Context, rec *sip.Record) error {
	if ctx.Item != nil && ctx.Item.Extent().StartColumn == 1 {
		rec.Discard()
	}

	return nil
}

func discardNonConst(_ *rules.Context, rec *sip.Record) error {
	if !strings.Contains(rec.Suffix, strings.TrimSpace(sip.SuffixConst)) {
		rec.Discard()
	}

	return nil
}

func discardProtected(ctx *rules.Context, rec *sip.Record) error {
	if ctx.Item != nil && ctx.Item.Access() == cxxast.AccessProtected {
		rec.Discard()
	}

	return nil
}

func registerDiscards(r *Registry) {
	r.MustRegister(Descriptor{
		Name: "discard", Description: "drop the construct", Stages: everyStage,
	}, fixed(discard))

	for _, stage := range rules.MatchStages() {
		r.MustRegister(Descriptor{
			Name:        stage.String() + "_discard",
			Description: "drop the " + strings.ReplaceAll(stage.String(), "_", " "),
			Stages:      []rules.Stage{stage},
		}, fixed(discard))
	}

	r.MustRegister(Descriptor{
		Name: "noop", Description: "match without changing anything", Stages: everyStage,
	}, fixed(noop))
	r.MustRegister(Descriptor{
		Name: "silent_noop", Description: "decline the match and try the next rule", Stages: allStages,
	}, fixed(silentNoop))
	r.MustRegister(Descriptor{
		Name: "function_discard_impl", Description: "drop out-of-line member definitions", Stages: functionStage,
	}, fixed(discardImpl))
	r.MustRegister(Descriptor{
		Name: "function_discard_non_const", Description: "drop the non-const overload", Stages: functionStage,
	}, fixed(discardNonConst))
	r.MustRegister(Descriptor{
		Name:        "function_discard_protected",
		Description: "drop protected methods",
		Stages:      functionStage,
	}, fixed(discardProtected))
}
