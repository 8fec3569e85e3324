package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/sipgen/pkg/cache"
)

var (
	filesTotal    = instrument{"sipgen.files.total", "Headers processed", "{file}"}
	fileDuration  = instrument{"sipgen.file.duration.seconds", "Header rendering duration in seconds", "s"}
	filesInflight = instrument{"sipgen.files.inflight", "Headers being rendered", "{file}"}
	ruleHits      = instrument{"sipgen.rule.hits.total", "Rule matches", "{hit}"}
	cacheHits     = instrument{"sipgen.cache.hits.total", "Renderings served from the cache", "{hit}"}
	cacheMisses   = instrument{"sipgen.cache.misses.total", "Renderings missing from the cache", "{miss}"}
	cacheEntries  = instrument{"sipgen.cache.entries", "Renderings held in memory", "{entry}"}
	cacheBytes    = instrument{"sipgen.cache.size.bytes", "Bytes held by the in-memory cache", "By"}
)

const (
	attrStatus = "status"

	statusOK     = "ok"
	statusFailed = "failed"
	statusCached = "cached"
)

// durationBucketBoundaries covers 1ms to 60s; most headers render in a
// few milliseconds, template-heavy ones take seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// GenerationMetrics records per-header measurements of a generate run.
type GenerationMetrics struct {
	filesTotal    metric.Int64Counter
	fileDuration  metric.Float64Histogram
	filesInflight metric.Int64UpDownCounter
	ruleHits      metric.Int64Counter
}

// NewGenerationMetrics creates the instruments from the given meter.
func NewGenerationMetrics(mt metric.Meter) (*GenerationMetrics, error) {
	b := newMetricBuilder(mt)

	gm := &GenerationMetrics{
		filesTotal:    b.counter(filesTotal),
		fileDuration:  b.histogram(fileDuration),
		filesInflight: b.upDownCounter(filesInflight),
		ruleHits:      b.counter(ruleHits),
	}

	if b.err != nil {
		return nil, b.err
	}

	return gm, nil
}

// FileStarted marks a header as in flight.
func (gm *GenerationMetrics) FileStarted(ctx context.Context) {
	if gm == nil {
		return
	}

	gm.filesInflight.Add(ctx, 1)
}

// FileDone records a finished header.
func (gm *GenerationMetrics) FileDone(ctx context.Context, d time.Duration, failed, cached bool) {
	if gm == nil {
		return
	}

	status := statusOK

	switch {
	case failed:
		status = statusFailed
	case cached:
		status = statusCached
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	gm.filesInflight.Add(ctx, -1)
	gm.filesTotal.Add(ctx, 1, attrs)
	gm.fileDuration.Record(ctx, d.Seconds(), attrs)
}

// RuleHits adds n rule matches.
func (gm *GenerationMetrics) RuleHits(ctx context.Context, n int) {
	if gm == nil || n == 0 {
		return
	}

	gm.ruleHits.Add(ctx, int64(n))
}

// RegisterCacheMetrics exposes the counters of store as observable
// instruments. The returned registration must be unregistered when the
// store is dropped.
func RegisterCacheMetrics(mt metric.Meter, store *cache.Store) (metric.Registration, error) {
	b := newMetricBuilder(mt)

	hits := b.observableCounter(cacheHits)
	misses := b.observableCounter(cacheMisses)
	entries := b.gauge(cacheEntries)
	size := b.gauge(cacheBytes)

	if b.err != nil {
		return nil, b.err
	}

	reg, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := store.Stats()

		o.ObserveInt64(hits, stats.Hits)
		o.ObserveInt64(misses, stats.Misses)
		o.ObserveInt64(entries, int64(stats.Entries))
		o.ObserveInt64(size, stats.CurrentSize)

		return nil
	}, hits, misses, entries, size)
	if err != nil {
		return nil, fmt.Errorf("register cache callback: %w", err)
	}

	return reg, nil
}
