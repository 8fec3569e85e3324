package rules

import (
	"cmp"
	"slices"
)

// Usage is the hit count of one rule or code entry.
type Usage struct {
	Module   string
	Stage    Stage
	Rule     string
	Patterns []string
	Hits     int
}

// Usage reports the hits of every rule and code entry of every module, in
// module, stage and rule order. Code entries follow the rules, sorted by
// key.
func (rs *RuleSet) Usage(h *Hits) []Usage {
	var out []Usage

	for _, m := range rs.AllModules() {
		out = append(out, m.Usage(h)...)
	}

	return out
}

// Usage reports the hits of the module's own rules and code entries.
func (m *Module) Usage(h *Hits) []Usage {
	var out []Usage

	for _, stage := range MatchStages() {
		for _, r := range m.Db.Rules(stage) {
			out = append(out, Usage{
				Module:   m.Name,
				Stage:    stage,
				Rule:     r.String(),
				Patterns: r.Patterns,
				Hits:     h.Rule(r),
			})
		}
	}

	entries := m.Db.CodeEntries()
	slices.SortFunc(entries, func(a, b *CodeEntry) int {
		return cmp.Or(cmp.Compare(a.Stage, b.Stage), cmp.Compare(a.String(), b.String()))
	})

	for _, e := range entries {
		out = append(out, Usage{Module: m.Name, Stage: e.Stage, Rule: e.String(), Hits: h.Entry(e)})
	}

	return out
}

// Unused filters the entries that never fired.
func Unused(usage []Usage) []Usage {
	return slices.DeleteFunc(slices.Clone(usage), func(u Usage) bool { return u.Hits > 0 })
}
