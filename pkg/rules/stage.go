// Package rules holds the rule database that customises SIP emission.
//
// Rules are ordered per stage. Each rule is a list of regular expressions,
// one per positional field of the construct, plus a handler. The first rule
// whose every pattern matches its field wins and its handler mutates the
// rendering record. Code tables inject verbatim SIP directives keyed by
// container, method or include file.
package rules

// Stage identifies the construct a rule applies to.
type Stage int

// Rule stages. The code stages key entries by name instead of matching
// patterns.
const (
	StageContainer Stage = iota
	StageForwardDeclaration
	StageFunction
	StageParameter
	StageTypedef
	StageUnexposed
	StageVariable
	StageMethodCode
	StageTypeCode
	StageModuleCode

	numStages
	numMatchStages = StageMethodCode
)

type stageInfo struct {
	name string
	// key is the section of a rule module holding the stage.
	key    string
	fields []string
	// min is the least number of patterns a rule must give.
	min int
}

var stages = [numStages]stageInfo{
	StageContainer: {
		name:   "container",
		key:    "container_rules",
		fields: []string{"parents", "name", "template_parameters", "base_specifiers", "body"},
	},
	StageForwardDeclaration: {
		name:   "forward_declaration",
		key:    "forward_declaration_rules",
		fields: []string{"parents", "name", "template_parameters"},
	},
	StageFunction: {
		name:   "function",
		key:    "function_rules",
		fields: []string{"container", "name", "template_parameters", "fn_result", "parameters", "prefix", "suffix"},
		min:    5,
	},
	StageParameter: {
		name:   "parameter",
		key:    "parameter_rules",
		fields: []string{"container", "function", "parameter", "decl", "init"},
	},
	StageTypedef: {
		name:   "typedef",
		key:    "typedef_rules",
		fields: []string{"container", "name", "template_parameters", "decl"},
	},
	StageUnexposed: {
		name:   "unexposed",
		key:    "unexposed_rules",
		fields: []string{"container", "name", "text"},
	},
	StageVariable: {
		name:   "variable",
		key:    "variable_rules",
		fields: []string{"container", "name", "decl"},
	},
	StageMethodCode: {name: "methodcode", key: "methodcode"},
	StageTypeCode:   {name: "typecode", key: "typecode"},
	StageModuleCode: {name: "modulecode", key: "modulecode"},
}

// String returns the stage name used in logs and usage reports.
func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "unknown"
	}

	return stages[s].name
}

// Key is the rule module section holding the stage.
func (s Stage) Key() string {
	if s < 0 || s >= numStages {
		return ""
	}

	return stages[s].key
}

// Fields names the positional inputs of a matching stage in order.
func (s Stage) Fields() []string {
	if !s.IsMatch() {
		return nil
	}

	return stages[s].fields
}

// IsMatch reports whether the stage matches patterns rather than keys.
func (s Stage) IsMatch() bool {
	return s >= 0 && s < numMatchStages
}

// patternRange returns how many patterns a rule of the stage may give.
// Function rules take five, six or seven: a sixth pattern alone matches the
// trailing qualifiers (" const", " = 0"), while seven patterns match the
// leading qualifiers ("static ", "virtual ") and then the trailing ones.
func (s Stage) patternRange() (lo, hi int) {
	info := stages[s]
	hi = len(info.fields)

	lo = info.min
	if lo == 0 {
		lo = hi
	}

	return lo, hi
}

// MatchStages lists the pattern-matching stages in emission order.
func MatchStages() []Stage {
	out := make([]Stage, 0, numMatchStages)
	for s := range numMatchStages {
		out = append(out, s)
	}

	return out
}
