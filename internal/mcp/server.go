// Package mcp implements a Model Context Protocol server exposing SIP
// rendering and rule checking as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sipgen/internal/observability"
	"github.com/Sumatoshi-tech/sipgen/pkg/version"
)

const serverName = "sipgen"

// ServerDeps holds injectable dependencies for the MCP server. Every
// field is optional.
type ServerDeps struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics records every tool call when set.
	Metrics *observability.ToolMetrics
	// Tracer opens one span per tool call when set; sampled calls report
	// their trace ID in the result.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the sipgen tools.
type Server struct {
	inner  *mcpsdk.Server
	deps   ServerDeps
	logger *slog.Logger
	// tools is fixed once NewServer returns.
	tools []string
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		inner: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: serverName, Version: version.Version},
			&mcpsdk.ServerOptions{Logger: deps.Logger},
		),
		deps:   deps,
		logger: deps.Logger,
	}

	addTool(s, ToolNameRender, renderToolDescription, s.handleRender)
	addTool(s, ToolNameRulesCheck, rulesCheckToolDescription, s.handleRulesCheck)

	return s
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

// addTool registers handler under name with the tracing and metrics
// middleware the deps ask for.
func addTool[In any](s *Server, name, description string, handler toolHandler[In]) {
	if s.deps.Tracer != nil {
		handler = traced(s.deps.Tracer, name, handler)
	}

	if s.deps.Metrics != nil {
		handler = measured(s.deps.Metrics, name, handler)
	}

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, mcpsdk.ToolHandlerFor[In, ToolOutput](handler))

	s.tools = append(s.tools, name)
}

// traced opens a span named "mcp.<tool>" per call and, when it is sampled,
// appends "trace_id=<id>" to the result content.
func traced[In any](tracer trace.Tracer, name string, next toolHandler[In]) toolHandler[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, "mcp."+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, out, err := next(ctx, req, in)

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, out, err
	}
}

// measured counts a call as failed when it errors or returns an error
// result.
func measured[In any](metrics *observability.ToolMetrics, name string, next toolHandler[In]) toolHandler[In] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, name)
		defer done()

		result, out, err := next(ctx, req, in)

		metrics.RecordCall(ctx, name, err != nil || (result != nil && result.IsError), time.Since(start))

		return result, out, err
	}
}

const (
	renderToolDescription = "Render the SIP binding of one C++ header with a sipgen rules package. " +
		"Accepts the absolute path of the rules package and the header path, " +
		"absolute or relative to the package source root. Nothing is written."

	rulesCheckToolDescription = "Validate a sipgen rules package: the manifest and every rule module " +
		"against their schemas, every pattern and every action name. " +
		"Returns the modules found or the list of problems."
)
