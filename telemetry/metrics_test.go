package telemetry

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelSink(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	sink, err := NewOTelSink(mp, attribute.String("faas.name", "orders"))
	require.NoError(t, err)

	sink.RecordInvocation()
	sink.RecordInvocation()
	sink.RecordError()
	sink.RecordLatency(0.5)
	sink.RecordLatency(-1)
	sink.RecordLatency(math.NaN())

	metrics := collect(t, reader)

	inv, ok := metrics[MetricInvocations].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inv.DataPoints, 1)
	assert.Equal(t, int64(2), inv.DataPoints[0].Value)
	name, _ := inv.DataPoints[0].Attributes.Value("faas.name")
	assert.Equal(t, "orders", name.AsString())
	assert.Equal(t, "Number of invocations", metrics[MetricInvocations].Description)

	errs, ok := metrics[MetricErrors].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	hist, ok := metrics[MetricInvokeDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, 0.5, hist.DataPoints[0].Sum)
	assert.Equal(t, "s", metrics[MetricInvokeDuration].Unit)
}

func TestOTelSinkGlobalProvider(t *testing.T) {
	sink, err := NewOTelSink(nil)
	require.NoError(t, err)

	// the default global provider is a no-op; recording must not panic
	sink.RecordInvocation()
	sink.RecordError()
	sink.RecordLatency(0.1)
}

func TestOTelSinkSetFunctionName(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	sink, err := NewOTelSink(mp, attribute.String("faas.name", ""), attribute.String("faas.runtime", "go"))
	require.NoError(t, err)

	sink.SetFunctionName("")
	sink.SetFunctionName("billing")
	sink.RecordInvocation()

	inv, ok := collect(t, reader)[MetricInvocations].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inv.DataPoints, 1)

	attrs := inv.DataPoints[0].Attributes
	assert.Equal(t, 2, attrs.Len())
	name, _ := attrs.Value("faas.name")
	assert.Equal(t, "billing", name.AsString())
	runtime, _ := attrs.Value("faas.runtime")
	assert.Equal(t, "go", runtime.AsString())
}
