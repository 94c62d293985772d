package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/itsneelabh/lambdametrics/core"
)

// metricExportInterval is how often the OTLP reader exports. A frozen
// function exports on Shutdown.
const metricExportInterval = 30 * time.Second

// NewMeterProvider builds an OTLP/HTTP meter provider for the OTel sink.
//
// A URL endpoint is used as the full export URL, path included, as with
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT. It returns (nil, nil) when
// cfg.Metrics.OTLPEndpoint is empty. Unlike
// NewTracerProvider it does not touch the global provider; the caller passes
// it to NewOTelSink and must Shutdown it.
func NewMeterProvider(ctx context.Context, cfg *core.Config, layerVersion string) (*sdkmetric.MeterProvider, error) {
	endpoint := cfg.Metrics.OTLPEndpoint
	if endpoint == "" {
		return nil, nil
	}

	var opts []otlpmetrichttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		if cfg.Tracing.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), functionResource(cfg, layerVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(metricExportInterval))),
		sdkmetric.WithResource(res),
	), nil
}
