package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/itsneelabh/lambdametrics/core"
)

func TestNewTracerProviderDisabled(t *testing.T) {
	for _, exporter := range []string{"", "none"} {
		cfg := core.DefaultConfig()
		cfg.Tracing.Exporter = exporter

		tp, err := NewTracerProvider(context.Background(), cfg, "test")
		assert.NoError(t, err)
		assert.Nil(t, tp)
	}
}

func TestNewTracerProviderStdout(t *testing.T) {
	var buf bytes.Buffer
	prev := stdoutWriter
	stdoutWriter = &buf
	t.Cleanup(func() {
		stdoutWriter = prev
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	cfg := core.DefaultConfig()
	cfg.Tracing.Exporter = "stdout"
	cfg.Function.Name = "orders"

	tp, err := NewTracerProvider(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := otel.Tracer(TracerName).Start(context.Background(), "remote_write.flush")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "remote_write.flush")
	assert.Contains(t, buf.String(), "orders")
}

func TestNewTracerProviderOTLPNeedsEndpoint(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Tracing.Exporter = "otlp"

	_, err := NewTracerProvider(context.Background(), cfg, "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingConfiguration))
}

func TestNewTracerProviderUnknownExporter(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Tracing.Exporter = "zipkin"

	_, err := NewTracerProvider(context.Background(), cfg, "test")
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestFunctionResource(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Function.Name = "orders"
	cfg.Function.Version = "4"
	cfg.Function.Region = "us-east-1"
	cfg.Function.MemorySizeMB = 128

	res := functionResource(cfg, "1.0.0")
	assert.Empty(t, res.SchemaURL())

	values := map[attribute.Key]attribute.Value{}
	for _, kv := range res.Attributes() {
		values[kv.Key] = kv.Value
	}
	assert.Equal(t, "orders", values["service.name"].AsString())
	assert.Equal(t, "1.0.0", values["service.version"].AsString())
	assert.Equal(t, "orders", values["faas.name"].AsString())
	assert.Equal(t, "4", values["faas.version"].AsString())
	assert.Equal(t, "us-east-1", values["cloud.region"].AsString())
	assert.Equal(t, int64(128*1024*1024), values["faas.max_memory"].AsInt64())
	assert.NotContains(t, values, attribute.Key("cloud.account.id"))
}

func TestTracesURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://collector:4318", "http://collector:4318/v1/traces"},
		{"http://collector:4318/", "http://collector:4318/v1/traces"},
		{"https://gw.example.com/otlp/v1/traces", "https://gw.example.com/otlp/v1/traces"},
	}
	for _, tt := range tests {
		if got := tracesURL(tt.in); got != tt.want {
			t.Errorf("tracesURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewTracerProviderOTLPHTTP(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	cfg := core.DefaultConfig()
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Protocol = core.ProtocolHTTP
	cfg.Tracing.Endpoint = "localhost:4318"

	tp, err := NewTracerProvider(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// nothing was recorded, so shutdown has nothing to send
	assert.NoError(t, tp.Shutdown(ctx))
}
