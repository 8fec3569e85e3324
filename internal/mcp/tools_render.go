package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/sipgen/pkg/emitter"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// RenderOutput is the result of sip_render.
type RenderOutput struct {
	SipFile string `json:"sip_file"`
	// Text is empty when the header declares nothing.
	Text string `json:"text"`
	Hits int    `json:"rule_hits"`
}

// handleRender processes sip_render tool calls.
func (s *Server) handleRender(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RenderInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRulesPackage(input.RulesPackage); err != nil {
		return errorResult(err)
	}

	if input.Header == "" {
		return errorResult(ErrEmptyHeader)
	}

	rs, err := rules.LoadRuleSet(input.RulesPackage, rulehelpers.Default())
	if err != nil {
		return errorResult(fmt.Errorf("load rules: %w", err))
	}

	g, err := generator.New(rs, generator.Options{
		Check:   true,
		Emitter: emitter.Options{TraceDiscards: input.TraceDiscards},
		Logger:  s.logger,
		Tracer:  s.deps.Tracer,
	})
	if err != nil {
		return errorResult(err)
	}

	rendered, err := g.RenderFile(ctx, input.Header)
	if err != nil {
		return errorResult(fmt.Errorf("render %s: %w", input.Header, err))
	}

	return jsonResult(RenderOutput{
		SipFile: rendered.SipFile,
		Text:    rendered.Text,
		Hits:    rendered.Hits.Total(),
	})
}
