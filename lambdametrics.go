// Package lambdametrics instruments AWS Lambda handlers written in Go.
//
// It wires three parts together:
//   - github.com/itsneelabh/lambdametrics/handler - normalizes and wraps handlers
//   - github.com/itsneelabh/lambdametrics/telemetry - the metric registry, logging and tracing
//   - github.com/itsneelabh/lambdametrics/remotewrite - pushes metrics to the metric store
//
// A function builds one Observability in main, wraps its handler and hands
// the result to lambda.Start:
//
//	obs, err := lambdametrics.New(ctx)
//	...
//	lambda.Start(lambdametrics.Wrap(obs, handler.Async(processOrder)))
package lambdametrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/itsneelabh/lambdametrics/core"
	"github.com/itsneelabh/lambdametrics/handler"
	"github.com/itsneelabh/lambdametrics/remotewrite"
	"github.com/itsneelabh/lambdametrics/telemetry"
)

// Re-export the types callers need most often
type (
	Config = core.Config
	Option = core.Option
	Logger = core.Logger

	MetricsSink = core.MetricsSink
)

// Re-export configuration helpers
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	WithRemoteWrite         = core.WithRemoteWrite
	WithPort                = core.WithPort
	WithTenant              = core.WithTenant
	WithFlushInterval       = core.WithFlushInterval
	WithFlushOnStart        = core.WithFlushOnStart
	WithRemoteWriteDisabled = core.WithRemoteWriteDisabled
	WithFunctionIdentity    = core.WithFunctionIdentity
	WithRegion              = core.WithRegion
	WithAccountID           = core.WithAccountID
	WithMemorySize          = core.WithMemorySize
	WithMetricPrefix        = core.WithMetricPrefix
	WithDefaultCollectors   = core.WithDefaultCollectors
	WithDebug               = core.WithDebug
	WithLogLevel            = core.WithLogLevel
	WithLogFormat           = core.WithLogFormat
	WithOTELEndpoint        = core.WithOTELEndpoint
	WithTraceExporter       = core.WithTraceExporter
	WithOTLPProtocol        = core.WithOTLPProtocol
	WithOTLPMetricsEndpoint = core.WithOTLPMetricsEndpoint
	WithConfigFile          = core.WithConfigFile
)

// providerFlushTimeout bounds the provider flush when Shutdown gives up on
// pushes still in flight.
const providerFlushTimeout = 2 * time.Second

// Observability owns the process-wide metric set, the flusher and the
// optional tracer provider. Build it once per process.
type Observability struct {
	config   *core.Config
	logger   *telemetry.Logger
	registry *telemetry.Registry
	flusher  *remotewrite.Flusher
	tracer   *sdktrace.TracerProvider
	meter    *sdkmetric.MeterProvider
	otelSink *telemetry.OTelSink
	sinks    []core.MetricsSink
}

// New loads configuration from the environment, applies opts and starts the
// flusher. An incomplete remote write configuration is not an error; the
// registry still counts and nothing is pushed.
func New(ctx context.Context, opts ...core.Option) (*Observability, error) {
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig is New for a configuration built by the caller.
func NewWithConfig(ctx context.Context, cfg *core.Config) (*Observability, error) {
	if cfg == nil {
		return nil, core.NewLayerError("lambdametrics.New", "config", core.ErrMissingConfiguration)
	}

	logger := telemetry.NewLogger(cfg.Logging, cfg.Function.Name)
	o := &Observability{config: cfg, logger: logger}

	registry, err := telemetry.NewRegistry(cfg, Version,
		telemetry.WithRegistryLogger(logger.WithComponent("lambdametrics/registry")),
		telemetry.WithIdentityListener(o.functionNameLearned))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric registry: %w", err)
	}
	o.registry = registry

	tp, err := telemetry.NewTracerProvider(ctx, cfg, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	o.tracer = tp

	mp, err := telemetry.NewMeterProvider(ctx, cfg, Version)
	if err != nil {
		o.shutdownProviders(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}
	o.meter = mp

	// without an OTLP endpoint the sink reports to the global provider
	var provider metric.MeterProvider
	if mp != nil {
		provider = mp
	}
	sink, err := telemetry.NewOTelSink(provider, semconv.FaaSName(cfg.Function.Name),
		attribute.String("faas.runtime", "go"))
	if err != nil {
		logger.Warn("OpenTelemetry metric sink unavailable", map[string]interface{}{
			"error": err,
		})
	} else {
		o.otelSink = sink
		o.sinks = append(o.sinks, sink)
	}

	flusherOpts := []remotewrite.Option{
		remotewrite.WithLogger(logger.WithComponent("lambdametrics/remotewrite")),
	}
	if tp != nil {
		flusherOpts = append(flusherOpts,
			remotewrite.WithTracerProvider(tp),
			remotewrite.WithPoster(telemetry.NewTracedHTTPClient(nil, tp)),
		)
	}
	flusher, err := remotewrite.New(remotewrite.ConfigFrom(cfg.RemoteWrite), registry, flusherOpts...)
	if err != nil {
		o.shutdownProviders(ctx)
		return nil, fmt.Errorf("failed to create flusher: %w", err)
	}
	o.flusher = flusher

	logger.Info("Lambda metrics initialized", map[string]interface{}{
		"layer_version":  Version,
		"remote_write":   flusher.IsRemoteWritingOn(),
		"trace_exporter": cfg.Tracing.Exporter,
		"otlp_metrics":   mp != nil,
		"identity_known": registry.IdentityKnown(),
	})
	return o, nil
}

// Wrap instruments h with o's registry and sinks. Handler options are
// applied after the defaults, so callers can still add sinks or turn off
// rethrowing.
func Wrap[E, R any](o *Observability, h handler.Handler[E, R], opts ...handler.Option) handler.Func[E, R] {
	return handler.Wrap(h, o.registry, o.handlerOptions(opts)...)
}

// WrapFunc is Wrap for a plain function value of any supported shape.
func WrapFunc[E, R any](o *Observability, fn any, opts ...handler.Option) (handler.Func[E, R], error) {
	return handler.WrapFunc[E, R](fn, o.registry, o.handlerOptions(opts)...)
}

// functionNameLearned runs when the first invocation supplies the function
// name that the environment did not.
func (o *Observability) functionNameLearned(name string) {
	o.logger.SetFunction(name)
	if o.otelSink != nil {
		o.otelSink.SetFunctionName(name)
	}
}

func (o *Observability) handlerOptions(opts []handler.Option) []handler.Option {
	base := []handler.Option{
		handler.WithLogger(o.logger.WithComponent("lambdametrics/handler")),
		handler.WithSinks(o.sinks...),
	}
	return append(base, opts...)
}

// Config returns the effective configuration.
func (o *Observability) Config() *core.Config {
	return o.config
}

// Logger returns the layer logger.
func (o *Observability) Logger() core.Logger {
	return o.logger
}

// Registry returns the metric registry. Custom collectors registered on it
// are pushed with the built-in series.
func (o *Observability) Registry() *telemetry.Registry {
	return o.registry
}

// Flusher returns the remote flusher.
func (o *Observability) Flusher() *remotewrite.Flusher {
	return o.flusher
}

// Shutdown stops the flusher, waits for pushes in flight and flushes the
// tracer and meter providers. If the pushes do not finish before ctx is done
// the providers are still flushed, bounded by providerFlushTimeout, and ctx's
// error is returned.
func (o *Observability) Shutdown(ctx context.Context) error {
	o.flusher.Cancel()

	done := make(chan struct{})
	go func() {
		o.flusher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), providerFlushTimeout)
		defer cancel()
		o.shutdownProviders(flushCtx)
		return ctx.Err()
	}

	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			o.logger.Warn("Failed to flush OTLP metrics", map[string]interface{}{
				"error": err,
			})
		}
	}
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down tracer provider: %w", err)
		}
	}
	o.logger.Info("Lambda metrics shut down", map[string]interface{}{
		"stats": o.flusher.Stats(),
	})
	return nil
}

func (o *Observability) shutdownProviders(ctx context.Context) {
	if o.meter != nil {
		_ = o.meter.Shutdown(ctx)
	}
	if o.tracer != nil {
		_ = o.tracer.Shutdown(ctx)
	}
}
