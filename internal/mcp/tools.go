package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameRender     = "sip_render"
	ToolNameRulesCheck = "sip_rules_check"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRulesPackage indicates the rules_package parameter is empty.
	ErrEmptyRulesPackage = errors.New("rules_package parameter is required and must not be empty")
	// ErrRulesPackageNotAbsolute indicates rules_package is not an absolute path.
	ErrRulesPackageNotAbsolute = errors.New("rules_package must be an absolute path")
	// ErrEmptyHeader indicates the header parameter is empty.
	ErrEmptyHeader = errors.New("header parameter is required and must not be empty")
)

// RenderInput is the input schema for the sip_render tool.
// RulesPackage and Header are validated by the handler, so a missing value
// comes back as a tool error naming the parameter.
type RenderInput struct {
	RulesPackage  string `json:"rules_package,omitempty"  jsonschema:"absolute path of the rules package directory or its sipgen.yaml"`
	Header        string `json:"header,omitempty"         jsonschema:"header to render, absolute or relative to the source root"`
	TraceDiscards bool   `json:"trace_discards,omitempty" jsonschema:"emit a comment for every discarded item"`
}

// RulesCheckInput is the input schema for the sip_rules_check tool.
type RulesCheckInput struct {
	RulesPackage string `json:"rules_package,omitempty" jsonschema:"absolute path of the rules package directory or its sipgen.yaml"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateRulesPackage(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmptyRulesPackage
	}

	if !filepath.IsAbs(p) {
		return fmt.Errorf("%w: %s", ErrRulesPackageNotAbsolute, p)
	}

	return nil
}
