package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// RulesCheckOutput is the result of sip_rules_check.
type RulesCheckOutput struct {
	OK       bool            `json:"ok"`
	Package  string          `json:"package,omitempty"`
	Modules  []ModuleSummary `json:"modules,omitempty"`
	Problems []string        `json:"problems,omitempty"`
}

// ModuleSummary describes one loaded rule module.
type ModuleSummary struct {
	Name    string         `json:"name"`
	Path    string         `json:"path"`
	Headers string         `json:"headers,omitempty"`
	Rules   map[string]int `json:"rules"`
}

// handleRulesCheck processes sip_rules_check tool calls.
func (s *Server) handleRulesCheck(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input RulesCheckInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRulesPackage(input.RulesPackage); err != nil {
		return errorResult(err)
	}

	rs, problems := rules.Check(input.RulesPackage, rulehelpers.Default())
	if len(problems) > 0 {
		out := RulesCheckOutput{}
		for _, p := range problems {
			out.Problems = append(out.Problems, p.Error())
		}

		s.logger.Info("rules package has problems", "package", input.RulesPackage, "problems", len(problems))

		return jsonResult(out)
	}

	out := RulesCheckOutput{OK: true, Package: rs.Package}

	for _, m := range rs.AllModules() {
		out.Modules = append(out.Modules, summarize(m))
	}

	return jsonResult(out)
}

func summarize(m *rules.Module) ModuleSummary {
	counts := map[string]int{}

	for _, stage := range rules.MatchStages() {
		if n := len(m.Db.Rules(stage)); n > 0 {
			counts[stage.Key()] = n
		}
	}

	for _, e := range m.Db.CodeEntries() {
		counts[e.Stage.Key()]++
	}

	return ModuleSummary{Name: m.Name, Path: m.Path, Headers: m.Headers, Rules: counts}
}
