package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

func TestMetricBuilder(t *testing.T) {
	t.Parallel()

	b := newMetricBuilder(noopmetric.NewMeterProvider().Meter("test"))
	in := instrument{"sipgen.test", "a test instrument", "{item}"}

	assert.NotNil(t, b.counter(in))
	assert.NotNil(t, b.histogram(instrument{"sipgen.test.seconds", "a histogram", "s"}))
	assert.NotNil(t, b.upDownCounter(in))
	assert.NotNil(t, b.gauge(in))
	assert.NotNil(t, b.observableCounter(in))
	require.NoError(t, b.err)
}

func TestMetricBuilderKeepsFirstError(t *testing.T) {
	t.Parallel()

	b := newMetricBuilder(noopmetric.NewMeterProvider().Meter("test"))

	b.fail(instrument{name: "first"}, assert.AnError)
	b.fail(instrument{name: "second"}, errSecond)

	require.ErrorIs(t, b.err, assert.AnError)
	assert.Contains(t, b.err.Error(), "create first")
}
