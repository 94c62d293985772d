package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/itsneelabh/lambdametrics/core"
)

// TracerName is the instrumentation scope used for spans created by this module.
const TracerName = "github.com/itsneelabh/lambdametrics"

// stdoutWriter is where the stdout exporter writes. Tests replace it.
var stdoutWriter io.Writer = os.Stdout

// NewTracerProvider builds the tracer provider selected by cfg.Tracing and
// installs it as the global provider together with the W3C propagator.
//
// It returns (nil, nil) when tracing is off. The caller owns the provider and
// must Shutdown it to flush batched spans before the process is frozen.
func NewTracerProvider(ctx context.Context, cfg *core.Config, layerVersion string) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch cfg.Tracing.Exporter {
	case "", "none":
		return nil, nil
	case "otlp":
		exporter, err = newOTLPExporter(ctx, cfg.Tracing)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdoutWriter))
	default:
		return nil, &core.LayerError{
			Op:      "NewTracerProvider",
			Kind:    "config",
			Message: fmt.Sprintf("unknown trace exporter: %q", cfg.Tracing.Exporter),
			Err:     core.ErrInvalidConfiguration,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Tracing.Exporter, err)
	}

	res, err := resource.Merge(resource.Default(), functionResource(cfg, layerVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

func newOTLPExporter(ctx context.Context, cfg core.TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, core.NewLayerError("newOTLPExporter", "config", core.ErrMissingConfiguration)
	}

	if cfg.Protocol == core.ProtocolHTTP {
		var opts []otlptracehttp.Option
		if strings.Contains(cfg.Endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(tracesURL(cfg.Endpoint)))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
			if cfg.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
		}
		return otlptracehttp.New(ctx, opts...)
	}

	var opts []otlptracegrpc.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// tracesURL appends the signal path to a base OTLP/HTTP endpoint.
func tracesURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || strings.Trim(u.Path, "/") != "" {
		return endpoint
	}
	u.Path = "/v1/traces"
	return u.String()
}

// functionResource describes this function for traces and OTLP metrics. It
// is schemaless so it merges with the SDK default resource whatever semconv
// version that uses.
func functionResource(cfg *core.Config, layerVersion string) *resource.Resource {
	service := cfg.Tracing.ServiceName
	if service == "" {
		service = cfg.Function.Name
	}
	if service == "" {
		service = "lambdametrics"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(service),
		semconv.TelemetrySDKLanguageGo,
		semconv.CloudProviderAWS,
		semconv.CloudPlatformAWSLambda,
	}
	if layerVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(layerVersion))
	}
	if cfg.Function.Name != "" {
		attrs = append(attrs, semconv.FaaSName(cfg.Function.Name))
	}
	if cfg.Function.Version != "" {
		attrs = append(attrs, semconv.FaaSVersion(cfg.Function.Version))
	}
	if cfg.Function.Region != "" {
		attrs = append(attrs, semconv.CloudRegion(cfg.Function.Region))
	}
	if cfg.Function.AccountID != "" {
		attrs = append(attrs, semconv.CloudAccountID(cfg.Function.AccountID))
	}
	if cfg.Function.MemorySizeMB > 0 {
		attrs = append(attrs, semconv.FaaSMaxMemory(cfg.Function.MemorySizeMB*1024*1024))
	}
	return resource.NewSchemaless(attrs...)
}
