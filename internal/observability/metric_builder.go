package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrument describes one metric; every sipgen instrument is declared as
// a package-level instrument value.
type instrument struct {
	name string
	desc string
	unit string
}

// metricBuilder creates instruments on one meter. Only the first failure is
// kept; callers check err once after creating a set.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(in instrument) metric.Int64Counter {
	c, err := b.meter.Int64Counter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	b.fail(in, err)

	return c
}

// histogram uses the duration buckets; all sipgen histograms measure
// seconds.
func (b *metricBuilder) histogram(in instrument) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(in.name,
		metric.WithDescription(in.desc),
		metric.WithUnit(in.unit),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	b.fail(in, err)

	return h
}

func (b *metricBuilder) upDownCounter(in instrument) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	b.fail(in, err)

	return c
}

func (b *metricBuilder) gauge(in instrument) metric.Int64ObservableGauge {
	g, err := b.meter.Int64ObservableGauge(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	b.fail(in, err)

	return g
}

func (b *metricBuilder) observableCounter(in instrument) metric.Int64ObservableCounter {
	c, err := b.meter.Int64ObservableCounter(in.name, metric.WithDescription(in.desc), metric.WithUnit(in.unit))
	b.fail(in, err)

	return c
}

func (b *metricBuilder) fail(in instrument, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", in.name, err)
	}
}
