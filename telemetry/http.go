package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// NewTracedHTTPClient creates the HTTP client used for remote writes.
//
// Every request gets a client span and carries W3C TraceContext headers, so
// a push shows up under the flush span when tracing is enabled. With no
// tracer provider configured the global one is used, which is a no-op until
// NewTracerProvider installs a real one.
//
// Parameters:
//   - baseTransport: The underlying transport to use. If nil, a pooled
//     transport suitable for one long-lived endpoint is created.
//   - tp: Tracer provider for the client spans. If nil, the global provider.
//
// The client has no timeout of its own; requests are bounded by their context.
//
// Example:
//
//	client := telemetry.NewTracedHTTPClient(nil, nil)
//	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
//	resp, err := client.Do(req)
func NewTracedHTTPClient(baseTransport http.RoundTripper, tp trace.TracerProvider) *http.Client {
	if baseTransport == nil {
		baseTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}

	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "remote_write " + r.Method + " " + r.URL.Path
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(baseTransport, opts...),
	}
}
