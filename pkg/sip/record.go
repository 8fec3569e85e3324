// Package sip holds the rendering record that rule handlers mutate and the
// small text helpers shared by everything that writes SIP files.
package sip

import (
	"reflect"
	"slices"
)

// Qualifier suffixes and prefixes rendered around a function declaration.
const (
	PrefixInline  = "inline "
	PrefixStatic  = "static "
	PrefixVirtual = "virtual "
	SuffixConst   = " const"
	SuffixPure    = " = 0"
)

// Record is the mutable description of one construct being emitted. It is
// created fresh per construct, handed to at most one rule handler and then
// rendered. An empty Name discards the construct.
type Record struct {
	Name string
	// Decl is the declaration text: "class Foo", "enum Mode", a parameter
	// "const QString &name", a variable type or a typedef's underlying type.
	Decl string
	// Code is appended verbatim after the declaration.
	Code string
	// Body is the rendered content of a container.
	Body string

	FnResult   string
	Parameters []string
	Prefix     string
	Suffix     string
	// Init is the default value of a parameter.
	Init string

	Annotations *Annotations
	// BaseSpecifiers are the public bases of a container.
	BaseSpecifiers []string
	// TemplateParameters is nil for non-templates.
	TemplateParameters []string
	Enumerations       []string

	// IsSignal marks a method declared in a signals section.
	IsSignal bool
	// Template names the template expander used by function_uses_templates.
	Template string

	// CxxFnResult and CxxParameters render the optional C++ signature
	// "[result (params)]" after a function.
	CxxFnResult   string
	CxxParameters []string

	ModuleCode *CodeMap
}

// NewRecord returns a record for name with empty annotations and module code.
func NewRecord(name string) *Record {
	return &Record{
		Name:        name,
		Annotations: NewAnnotations(),
		ModuleCode:  NewCodeMap(),
	}
}

// Discarded reports whether a rule suppressed the construct.
func (r *Record) Discarded() bool {
	return r.Name == ""
}

// Discard suppresses the construct.
func (r *Record) Discard() {
	r.Name = ""
}

// Clone returns a deep copy, used to tell whether a handler changed anything.
func (r *Record) Clone() *Record {
	c := *r
	c.Parameters = slices.Clone(r.Parameters)
	c.BaseSpecifiers = slices.Clone(r.BaseSpecifiers)
	c.TemplateParameters = slices.Clone(r.TemplateParameters)
	c.Enumerations = slices.Clone(r.Enumerations)
	c.CxxParameters = slices.Clone(r.CxxParameters)
	c.Annotations = r.Annotations.Clone()
	c.ModuleCode = r.ModuleCode.Clone()

	return &c
}

// Equal reports whether two records render identically.
func (r *Record) Equal(other *Record) bool {
	return reflect.DeepEqual(r, other)
}
