package rulehelpers

import (
	"fmt"
	"path"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// family is a shape of container SIP converts to a Python builtin.
type family struct {
	name     string
	template string
	// arity is the number of template arguments: one element type, or a
	// key and a value.
	arity int
}

var families = []family{
	{name: "list", template: "list", arity: 1},
	{name: "dict", template: "dict", arity: 2},
	{name: "qset", template: "set", arity: 1},
	{name: "pair", template: "pair", arity: 2},
}

type mappedType struct {
	Header        string
	TemplateT     string
	Key           Converter
	Value         Converter
	NeedString    bool
	KeyNeedString bool
}

// templateInstance finds the first "Name<...>" in text, brackets balanced.
func templateInstance(text string) string {
	open := strings.IndexByte(text, '<')
	if open < 0 {
		return ""
	}

	start := open
	for start > 0 && (isIdent(text[start-1]) || text[start-1] == ':') {
		start--
	}

	depth := 0

	for i := open; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}

func isIdent(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// mappedTypeCode renders the conversion code of instance, or returns
// SilentNoop when instance does not have the family's shape.
func (f family) mappedTypeCode(ctx *rules.Context, instance string, args []string) (string, error) {
	tmpl, targs := sip.DecomposeTemplate(instance)
	if len(targs) != f.arity {
		return "", rules.SilentNoop
	}

	header := path.Base(strings.ReplaceAll(tmpl, "::", "/"))
	if len(args) > 0 {
		// The template supplies the brackets: "<QtCore/QHash>" and
		// "\"qhash.h\"" are both taken as the bare path.
		header = strings.Trim(strings.TrimSpace(args[0]), `<>"`)
	}

	isEnum := isEnumIn(ctx)
	data := mappedType{Header: header, TemplateT: tmpl}

	value := NewHeldAs(targs[len(targs)-1], isEnum)
	data.Value = Converter{HeldAs: value, conv: mappedTypeConversions}
	data.NeedString = value.Complex()

	if f.arity == 2 { //nolint:mnd // key and value.
		key := NewHeldAs(targs[0], isEnum)
		data.Key = Converter{HeldAs: key, conv: mappedTypeConversions}
		data.KeyNeedString = key.Complex()
	}

	return render(f.template, data)
}

// declare adds a %MappedType for the template instance found in text to
// the module code.
func (f family) declare(ctx *rules.Context, rec *sip.Record, text string, args []string) error {
	instance := templateInstance(text)
	if instance == "" {
		return rules.SilentNoop
	}

	if _, done := rec.ModuleCode.Get(instance); done {
		return nil
	}

	code, err := f.mappedTypeCode(ctx, instance, args)
	if err != nil {
		return err
	}

	// The trace names the instance, not the item, so that every header
	// using it contributes the same code to the module.
	rec.ModuleCode.Set(instance, "%MappedType "+instance+"\n{\n"+
		sip.GeneratedFor(instance, ctx.Rule, f.name+" mapped type")+code+"};\n")

	return nil
}

// typecode fills the code of a typedef or container that names a template
// instance, making it a %MappedType itself.
func (f family) typecode(ctx *rules.Context, rec *sip.Record, args []string) error {
	var instance string

	switch item := ctx.Item.(type) {
	case *cxxast.Typedef:
		instance = templateInstance(item.Underlying())
	case nil:
	default:
		instance = templateInstance(rec.Decl)
	}

	if instance == "" {
		return fmt.Errorf("%w: no template instance in %s", ErrArgs, ctx.Describe())
	}

	code, err := f.mappedTypeCode(ctx, instance, args)
	if err != nil {
		return err
	}

	rec.Code += sip.GeneratedFor(ctx.Describe(), ctx.Rule, f.name+" mapped type") + code

	return nil
}

func registerMappedTypes(r *Registry) {
	for _, f := range families {
		fields := []struct {
			name  string
			stage []rules.Stage
			text  func(*sip.Record) string
		}{
			{f.name + "_parameter", parameterStage, func(rec *sip.Record) string { return rec.Decl }},
			{f.name + "_fn_result", functionStage, func(rec *sip.Record) string { return rec.FnResult }},
			{f.name + "_typedef", typedefStage, func(rec *sip.Record) string { return rec.Decl }},
			{f.name + "_variable", variableStage, func(rec *sip.Record) string { return rec.Decl }},
		}

		for _, field := range fields {
			r.MustRegister(Descriptor{
				Name:        field.name,
				Description: "declare a %MappedType converting to a Python " + f.template,
				Stages:      field.stage,
				MaxArgs:     1,
			}, func(args []string) (rules.Handler, error) {
				return func(ctx *rules.Context, rec *sip.Record) error {
					return f.declare(ctx, rec, field.text(rec), args)
				}, nil
			})
		}

		r.MustRegister(Descriptor{
			Name:        "typecode_cfttc_" + f.template,
			Description: "make the type a %MappedType converting to a Python " + f.template,
			Stages:      typeCodeStage,
			MaxArgs:     1,
		}, func(args []string) (rules.Handler, error) {
			return func(ctx *rules.Context, rec *sip.Record) error {
				return f.typecode(ctx, rec, args)
			}, nil
		})
	}

	pair := families[len(families)-1]
	r.MustRegister(Descriptor{
		Name:        "qpair_parameter",
		Description: "declare a %MappedType converting to a Python tuple",
		Stages:      parameterStage,
		MaxArgs:     1,
	}, func(args []string) (rules.Handler, error) {
		return func(ctx *rules.Context, rec *sip.Record) error {
			return pair.declare(ctx, rec, rec.Decl, args)
		}, nil
	})
}
