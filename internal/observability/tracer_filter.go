package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// perHeaderSpans open once per header and dominate trace volume on a
// framework-sized tree.
var perHeaderSpans = map[string]bool{
	"sipgen.file": true,
}

type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
}

// NewFilteringTracerProvider wraps delegate so that per-header spans are
// no-ops while the run and module spans are kept. Children of a dropped
// span attach to the nearest recorded ancestor.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{delegate: delegate}
}

func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{delegate: f.delegate.Tracer(name, opts...)}
}

type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     nooptrace.Tracer
}

func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if perHeaderSpans[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
