package rules

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// CodeEntry is a value of a code table. Exactly one of Code and Generator
// is set: Code is literal SIP text, Generator computes it.
type CodeEntry struct {
	Stage Stage
	// Key is "KCodecs::Codec" for typecode, "KCodecs::Codec" plus Name
	// for methodcode, and an include filename for modulecode.
	Key  string
	Name string
	// Module is the rule module the entry was loaded from.
	Module string

	Code      string
	Generator Handler
	Action    string
	Args      []string

	// Decl and FnResult replace a method's parameters and result. Decl2
	// and FnResult2 add the C++ signature "[fn_result2 (decl2)]".
	Decl      *string
	FnResult  *string
	Decl2     *string
	FnResult2 *string
}

// String is the identity used in traces: "[KCodecs::Codec,encode]".
func (e *CodeEntry) String() string {
	if e.Name != "" {
		return "[" + e.Key + "," + e.Name + "]"
	}

	return "[" + e.Key + "]"
}

func (e *CodeEntry) generate(ctx *Context, rec *sip.Record) error {
	if e.Generator == nil {
		rec.Code = e.Code

		return nil
	}

	rec.Code = ""

	return e.Generator(ctx, rec)
}

// CodeTables are the three code-injection tables of a database.
type CodeTables struct {
	// methods is keyed by container then method name.
	methods map[string]map[string]*CodeEntry
	types   map[string]*CodeEntry
	// modules is keyed by include filename suffix, kept in load order so
	// the first matching suffix wins.
	modules    map[string]*CodeEntry
	moduleKeys []string
}

func newCodeTables() CodeTables {
	return CodeTables{
		methods: map[string]map[string]*CodeEntry{},
		types:   map[string]*CodeEntry{},
		modules: map[string]*CodeEntry{},
	}
}

// add stores e unless its key is already present.
func (t *CodeTables) add(e *CodeEntry) {
	switch e.Stage {
	case StageMethodCode:
		inner, ok := t.methods[e.Key]
		if !ok {
			inner = map[string]*CodeEntry{}
			t.methods[e.Key] = inner
		}

		if _, dup := inner[e.Name]; !dup {
			inner[e.Name] = e
		}
	case StageTypeCode:
		if _, dup := t.types[e.Key]; !dup {
			t.types[e.Key] = e
		}
	case StageModuleCode:
		if _, dup := t.modules[e.Key]; !dup {
			t.modules[e.Key] = e
			t.moduleKeys = append(t.moduleKeys, e.Key)
		}
	default:
	}
}

func (t *CodeTables) merge(other *CodeTables) {
	for _, inner := range other.methods {
		for _, e := range inner {
			t.add(e)
		}
	}

	for _, e := range other.types {
		t.add(e)
	}

	for _, k := range other.moduleKeys {
		t.add(other.modules[k])
	}
}

// Entries lists every entry of the tables.
func (t *CodeTables) Entries() []*CodeEntry {
	var out []*CodeEntry

	for _, inner := range t.methods {
		for _, e := range inner {
			out = append(out, e)
		}
	}

	for _, e := range t.types {
		out = append(out, e)
	}

	for _, k := range t.moduleKeys {
		out = append(out, t.modules[k])
	}

	return out
}

func (t *CodeTables) module(filename string) *CodeEntry {
	for _, k := range t.moduleKeys {
		if filename == k || strings.HasSuffix(filename, "/"+k) {
			return t.modules[k]
		}
	}

	return nil
}

var mappedTypeDirective = regexp.MustCompile(`(?m)^%(TypeHeaderCode|ConvertToTypeCode|ConvertFromTypeCode)`)

// IsMappedType reports whether type code turns a container into a
// %MappedType.
func IsMappedType(code string) bool {
	return mappedTypeDirective.MatchString(code)
}
