// Package remotewrite pushes rendered metrics to a Prometheus text import
// endpoint on a fixed interval.
//
// Pushes are fire-and-forget: each one runs on its own goroutine, failures
// are logged and counted, and nothing is retried. The next tick sends a
// fresh snapshot.
package remotewrite

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/itsneelabh/lambdametrics/core"
	"github.com/itsneelabh/lambdametrics/telemetry"
)

// maxLoggedBody bounds how much of a rejected response body is logged.
const maxLoggedBody = 64 << 10

// Source renders the metrics to push.
type Source interface {
	SetTenant(tenant string)
	// RenderText returns false while there is nothing to send yet.
	RenderText() (string, bool)
}

// HTTPPoster sends the push request. *http.Client satisfies it.
type HTTPPoster interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Flusher.
type Option func(*Flusher)

// WithPoster replaces the HTTP client.
func WithPoster(p HTTPPoster) Option {
	return func(f *Flusher) {
		if p != nil {
			f.poster = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(f *Flusher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTracerProvider wraps every push in a span from tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(f *Flusher) {
		if tp != nil {
			f.tracer = tp.Tracer(telemetry.TracerName)
		}
	}
}

// Flusher periodically pushes the source's metrics text.
//
// It is inert when the configuration has no endpoint or is disabled. Cancel
// stops the timer permanently; pushes already in flight are not aborted.
type Flusher struct {
	cfg    Config
	url    string
	source Source
	poster HTTPPoster
	logger core.Logger
	tracer trace.Tracer

	cancelled atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
	loopDone  chan struct{}
	inflight  sync.WaitGroup

	stats counters
}

// New creates a flusher for source. When the configuration is complete and
// not disabled it starts the timer, and with FlushOnStart pushes once before
// returning. A tenant, when configured, is handed to the source.
func New(cfg Config, source Source, opts ...Option) (*Flusher, error) {
	if source == nil {
		return nil, core.NewLayerError("remotewrite.New", "remotewrite", core.ErrMissingConfiguration)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = core.DefaultFlushInterval
	}
	if cfg.Port == 0 {
		cfg.Port = core.DefaultPort
	}

	f := &Flusher{
		cfg:    cfg,
		source: source,
		logger: core.NoOpLogger{},
		tracer: noop.NewTracerProvider().Tracer(telemetry.TracerName),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.poster == nil {
		f.poster = telemetry.NewTracedHTTPClient(nil, nil)
	}

	if cfg.Complete() {
		u, err := cfg.importURL()
		if err != nil {
			return nil, err
		}
		f.url = u
	}

	if cfg.Tenant != "" {
		source.SetTenant(cfg.Tenant)
	}

	if !f.IsRemoteWritingOn() {
		f.logger.Info("Remote write not active", cfg.fields())
		return f, nil
	}

	f.loopDone = make(chan struct{})
	go f.loop()
	f.logger.Info("Registered metric flush task", map[string]interface{}{
		"interval": cfg.Interval.String(),
		"url":      f.url,
	})

	if cfg.FlushOnStart {
		f.WriteMetrics(context.Background())
	}
	return f, nil
}

func (f *Flusher) loop() {
	defer close(f.loopDone)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.FlushMetrics(context.Background())
		}
	}
}

// IsRemoteWritingOn reports whether pushes are possible: the endpoint is
// configured, writing is not disabled and Cancel has not been called.
func (f *Flusher) IsRemoteWritingOn() bool {
	return f.cfg.Complete() && !f.cfg.Disabled && !f.cancelled.Load()
}

// FlushMetrics is the tick entry point. After Cancel it does nothing, not
// even render.
func (f *Flusher) FlushMetrics(ctx context.Context) {
	if f.cancelled.Load() {
		return
	}
	f.logger.Debug("Timer task flushing metrics", nil)
	f.WriteMetrics(ctx)
}

// WriteMetrics renders the source and starts a push. It returns once the
// request is dispatched; the response is handled on another goroutine.
func (f *Flusher) WriteMetrics(ctx context.Context) {
	if !f.IsRemoteWritingOn() {
		fields := f.cfg.fields()
		fields["cancelled"] = f.cancelled.Load()
		f.logger.Debug("Remote write configuration incomplete", fields)
		return
	}

	text, ok := f.source.RenderText()
	if !ok {
		f.stats.skipped.Add(1)
		f.logger.Info("Function name and version not known yet, skipping push", nil)
		return
	}

	ctx, span := f.tracer.Start(ctx, "remote_write.flush",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("remote_write.bytes", len(text))))

	req, err := f.newRequest(ctx, text)
	if err != nil {
		f.logger.Error("Failed to build push request", map[string]interface{}{
			"error": err,
			"url":   f.url,
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "request")
		span.End()
		return
	}

	f.stats.attempted.Add(1)
	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		defer span.End()
		f.push(req, span)
	}()
}

func (f *Flusher) newRequest(ctx context.Context, text string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(text))
	req.Header.Set("Content-Type", "text/plain")
	if f.cfg.Tenant != "" && f.cfg.Password != "" {
		req.SetBasicAuth(f.cfg.Tenant, f.cfg.Password)
	}
	return req, nil
}

func (f *Flusher) push(req *http.Request, span trace.Span) {
	resp, err := f.poster.Do(req)
	if err != nil {
		f.stats.recordError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		f.logger.Error("POST to metric store failed", map[string]interface{}{
			"error": err,
			"url":   f.url,
		})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	rejected := f.stats.recordStatus(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	f.logger.Info("POST to metric store", map[string]interface{}{
		"status": resp.StatusCode,
	})

	if rejected != nil {
		span.RecordError(rejected)
		span.SetStatus(codes.Error, resp.Status)
	}
	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		f.logger.Warn("Metric store rejected push", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoggedBody))
}

// Cancel stops the timer. It is idempotent and safe when no timer was
// started.
func (f *Flusher) Cancel() {
	f.cancelled.Store(true)
	f.stopOnce.Do(func() {
		close(f.stop)
	})
}

// Wait blocks until pushes in flight have finished. After Cancel it also
// waits for the timer goroutine to exit, so no new push can start.
func (f *Flusher) Wait() {
	if f.cancelled.Load() && f.loopDone != nil {
		<-f.loopDone
	}
	f.inflight.Wait()
}

// URL returns the import URL, empty when the endpoint is not configured.
func (f *Flusher) URL() string {
	return f.url
}

// Stats reports push counters and the last outcome.
func (f *Flusher) Stats() Stats {
	return f.stats.snapshot(f.IsRemoteWritingOn() && f.loopDone != nil)
}
