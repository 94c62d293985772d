/*
Package telemetry holds the per-process invocation metrics and the
observability plumbing around them.

Registry is the metric set: invocation and error counters, a duration
histogram, cold start and memory limit gauges, and optionally the Go runtime
and process collectors. RenderText produces Prometheus exposition text with
the instance labels (function, version, tenant, region and so on) attached to
every series. Until function name and version are known the registry is not
ready and renders nothing.

Thread Safety:

All exported types are safe for concurrent use. Invocations may run on
several goroutines while the flusher renders on another.

Usage:

	reg, err := telemetry.NewRegistry(cfg, lambdametrics.Version,
	    telemetry.WithRegistryLogger(logger))
	if err != nil {
	    return err
	}
	reg.SetFunctionIdentity("orders", "$LATEST")
	reg.RecordInvocation()
	text, ok := reg.RenderText()

Supporting pieces:

  - Logger: leveled text or JSON logging with rate-limited errors
  - NewTracerProvider: optional OTLP or stdout span export
  - NewTracedHTTPClient: HTTP client with client spans and trace propagation
  - OTelSink: mirrors measurements into OpenTelemetry instruments
  - NewMeterProvider: OTLP/HTTP export for the OTelSink
*/
package telemetry
