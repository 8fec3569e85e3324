package observability

import (
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedPrefixes are the attribute namespaces sipgen sets itself.
var exportedPrefixes = []string{"sipgen.", "error.", "mcp.", "rule."}

// privateKeys would carry header text, which may be proprietary and never
// leaves the process.
var privateKeys = map[attribute.Key]bool{
	"sipgen.content": true,
	"sipgen.body":    true,
}

// attributeFilter strips every attribute outside the sipgen namespaces
// before spans reach the exporter. OnStart, Shutdown and ForceFlush go
// straight to the wrapped processor.
type attributeFilter struct {
	sdktrace.SpanProcessor

	logger *slog.Logger
	// warned holds the keys already reported; a per-header attribute would
	// otherwise be logged once per header.
	warned sync.Map
}

// NewAttributeFilter returns a SpanProcessor that filters span attributes
// and forwards to delegate. When logger is non-nil, each dropped key is
// logged once.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{SpanProcessor: delegate, logger: logger}
}

// OnEnd forwards s with its attributes filtered.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.SpanProcessor.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) keep(key attribute.Key) bool {
	if key == "error" {
		return true
	}

	if !privateKeys[key] {
		for _, prefix := range exportedPrefixes {
			if strings.HasPrefix(string(key), prefix) {
				return true
			}
		}
	}

	if _, seen := f.warned.LoadOrStore(key, true); !seen && f.logger != nil {
		f.logger.Warn("span attribute dropped", "key", string(key))
	}

	return false
}

type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns the attributes the filter keeps.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	var kept []attribute.KeyValue

	for _, kv := range s.ReadOnlySpan.Attributes() {
		if s.filter.keep(kv.Key) {
			kept = append(kept, kv)
		}
	}

	return kept
}
