package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	toolCalls    = instrument{"sipgen.mcp.calls.total", "MCP tool calls", "{call}"}
	toolDuration = instrument{"sipgen.mcp.call.duration.seconds", "MCP tool call duration in seconds", "s"}
	toolInflight = instrument{"sipgen.mcp.inflight", "MCP tool calls in progress", "{call}"}
)

const attrTool = "tool"

// ToolMetrics records rate, errors and duration of MCP tool calls.
type ToolMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

// NewToolMetrics creates the instruments from the given meter.
func NewToolMetrics(mt metric.Meter) (*ToolMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &ToolMetrics{
		calls:    b.counter(toolCalls),
		duration: b.histogram(toolDuration),
		inflight: b.upDownCounter(toolInflight),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordCall records a finished call of tool.
func (tm *ToolMetrics) RecordCall(ctx context.Context, tool string, failed bool, d time.Duration) {
	status := statusOK
	if failed {
		status = statusFailed
	}

	attrs := metric.WithAttributes(attribute.String(attrTool, tool), attribute.String(attrStatus, status))

	tm.calls.Add(ctx, 1, attrs)
	tm.duration.Record(ctx, d.Seconds(), attrs)
}

// TrackInflight counts a call as in progress until the returned function runs.
func (tm *ToolMetrics) TrackInflight(ctx context.Context, tool string) func() {
	attrs := metric.WithAttributes(attribute.String(attrTool, tool))
	tm.inflight.Add(ctx, 1, attrs)

	return func() {
		tm.inflight.Add(ctx, -1, attrs)
	}
}
