package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/itsneelabh/lambdametrics/core"
)

// OpenTelemetry FaaS metric names.
const (
	MetricInvocations    = "faas.invocations"
	MetricErrors         = "faas.errors"
	MetricInvokeDuration = "faas.invoke_duration"
)

// OTelSink mirrors invocation measurements into OpenTelemetry instruments.
// It is an additional sink next to the Prometheus registry for functions
// that already export OTLP metrics.
type OTelSink struct {
	invocations metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
	attrs       atomic.Pointer[attribute.Set]
}

// NewOTelSink creates the instruments on a meter from mp. A nil mp uses the
// global meter provider. attrs are added to every measurement.
func NewOTelSink(mp metric.MeterProvider, attrs ...attribute.KeyValue) (*OTelSink, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(TracerName)

	invocations, err := meter.Int64Counter(MetricInvocations,
		metric.WithDescription("Number of invocations"),
		metric.WithUnit("{invocation}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricInvocations, err)
	}

	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Number of invocation errors"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricErrors, err)
	}

	duration, err := meter.Float64Histogram(MetricInvokeDuration,
		metric.WithDescription("Measures the duration of the function's logic execution"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", MetricInvokeDuration, err)
	}

	s := &OTelSink{
		invocations: invocations,
		errors:      errs,
		duration:    duration,
	}
	set := attribute.NewSet(attrs...)
	s.attrs.Store(&set)
	return s, nil
}

// SetFunctionName sets the faas.name attribute on later measurements. It is
// used when the name is only learned from the first invocation.
func (s *OTelSink) SetFunctionName(name string) {
	if name == "" {
		return
	}
	current := s.attrs.Load()
	kvs := make([]attribute.KeyValue, 0, current.Len()+1)
	for _, kv := range current.ToSlice() {
		if kv.Key != semconv.FaaSNameKey {
			kvs = append(kvs, kv)
		}
	}
	set := attribute.NewSet(append(kvs, semconv.FaaSName(name))...)
	s.attrs.Store(&set)
}

func (s *OTelSink) measurement() metric.MeasurementOption {
	return metric.WithAttributeSet(*s.attrs.Load())
}

// RecordInvocation increments the invocation counter.
func (s *OTelSink) RecordInvocation() {
	s.invocations.Add(context.Background(), 1, s.measurement())
}

// RecordError increments the error counter.
func (s *OTelSink) RecordError() {
	s.errors.Add(context.Background(), 1, s.measurement())
}

// RecordLatency records the duration in seconds.
func (s *OTelSink) RecordLatency(seconds float64) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return
	}
	s.duration.Record(context.Background(), seconds, s.measurement())
}

var _ core.MetricsSink = (*OTelSink)(nil)
