package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrMode    = "mode"
	attrRunID   = "run_id"
)

// TracingHandler adds the trace and span IDs of the active span to every
// record. The run attributes given to NewTracingHandler stay at the top
// level under any WithGroup.
type TracingHandler struct {
	slog.Handler
}

// NewTracingHandler wraps inner and tags its records with the service,
// mode and, when set, run ID.
func NewTracingHandler(inner slog.Handler, service, runID string, mode AppMode) *TracingHandler {
	run := []slog.Attr{slog.String(attrService, service), slog.String(attrMode, string(mode))}
	if runID != "" {
		run = append(run, slog.String(attrRunID, runID))
	}

	return &TracingHandler{Handler: inner.WithAttrs(run)}
}

// Handle implements [slog.Handler].
func (h *TracingHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String(attrTraceID, sc.TraceID().String()), slog.String(attrSpanID, sc.SpanID().String()))
	}

	if err := h.Handler.Handle(ctx, r); err != nil {
		return fmt.Errorf("log record: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{Handler: h.Handler.WithGroup(name)}
}
