package telemetry

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/itsneelabh/lambdametrics/core"
)

// Registry holds the per-process invocation metrics and renders them as
// Prometheus exposition text with the instance labels attached.
//
// Counters and the histogram are safe for concurrent use on their own; the
// label set has its own lock. A Registry is not ready until the function
// name and version are known, and RenderText returns nothing until then.
type Registry struct {
	prom   *prometheus.Registry
	labels *InstanceLabels
	logger core.Logger
	debug  bool

	invocations prometheus.Counter
	errors      prometheus.Counter
	latency     prometheus.Histogram
	coldStart   prometheus.Gauge
	memoryLimit prometheus.Gauge
	up          prometheus.Gauge

	memorySize func() int
	onIdentity []func(functionName string)

	coldMu  sync.Mutex
	invoked bool

	// rejected latency observations
	dropped atomic.Int64
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for render failures and debug output.
func WithRegistryLogger(logger core.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMemorySize overrides how the memory limit gauge is read at render time.
func WithMemorySize(fn func() int) RegistryOption {
	return func(r *Registry) {
		r.memorySize = fn
	}
}

// WithIdentityListener registers fn to be called with the function name
// whenever SetFunctionIdentity changes it.
func WithIdentityListener(fn func(functionName string)) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.onIdentity = append(r.onIdentity, fn)
		}
	}
}

// NewRegistry creates the metric set described by cfg.
// layerVersion is reported in the layer_version label.
func NewRegistry(cfg *core.Config, layerVersion string, opts ...RegistryOption) (*Registry, error) {
	if cfg == nil {
		return nil, core.NewLayerError("NewRegistry", "telemetry", core.ErrMissingConfiguration)
	}

	prefix := cfg.Metrics.Prefix
	if prefix == "" {
		prefix = core.DefaultMetricPrefix
	}

	r := &Registry{
		prom:   prometheus.NewRegistry(),
		labels: NewInstanceLabels(cfg, layerVersion),
		logger: core.NoOpLogger{},
		debug:  cfg.Logging.Debug,
		invocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_invocations_total",
			Help: "AWS Lambda Invocations Count",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_errors_total",
			Help: "AWS Lambda Errors Count",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_duration_seconds",
			Help:    "AWS Lambda Duration Histogram",
			Buckets: prometheus.DefBuckets,
		}),
		coldStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_cold_start",
			Help: "AWS Lambda Cold Start",
		}),
		memoryLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_memory_limit_mb",
			Help: "AWS Lambda Memory Limit in MB",
		}),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "up",
			Help: "Heartbeat metric",
		}),
		memorySize: memorySizeFrom(cfg.Function.MemorySizeMB),
	}

	for _, opt := range opts {
		opt(r)
	}

	toRegister := []prometheus.Collector{
		r.invocations, r.errors, r.latency, r.coldStart, r.memoryLimit, r.up,
	}
	if cfg.Metrics.DefaultCollectors {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range toRegister {
		if err := r.prom.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	r.up.Set(1)

	return r, nil
}

// memorySizeFrom returns the configured size, falling back to the runtime
// variable read at call time.
func memorySizeFrom(configured int) func() int {
	return func() int {
		if configured > 0 {
			return configured
		}
		v := strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
}

// Labels returns the instance label set.
func (r *Registry) Labels() *InstanceLabels {
	return r.labels
}

// Register adds a user collector to the same registry so it is pushed with
// the built-in metrics and receives the instance labels.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.prom.Register(c)
}

// Gatherer exposes the underlying registry without instance labels.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// RecordInvocation counts one invocation. The first one marks the instance
// as a cold start; later ones clear the mark.
func (r *Registry) RecordInvocation() {
	r.invocations.Inc()

	r.coldMu.Lock()
	if !r.invoked {
		r.invoked = true
		r.coldStart.Set(1)
	} else {
		r.coldStart.Set(0)
	}
	r.coldMu.Unlock()
}

// RecordError counts one failed invocation.
func (r *Registry) RecordError() {
	r.errors.Inc()
}

// RecordLatency observes an invocation duration in seconds.
// Negative, NaN and infinite values are dropped.
func (r *Registry) RecordLatency(seconds float64) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		r.dropped.Add(1)
		r.logger.Warn("Dropping invalid latency observation", map[string]interface{}{
			"seconds": seconds,
		})
		return
	}
	r.latency.Observe(seconds)
}

// Dropped returns how many latency observations were rejected.
func (r *Registry) Dropped() int64 {
	return r.dropped.Load()
}

// SetFunctionIdentity sets function name and version; the first writer of
// each field wins.
func (r *Registry) SetFunctionIdentity(name, version string) {
	before := r.labels.FunctionName()
	if !r.labels.SetFunctionIdentity(name, version) {
		return
	}
	r.logger.Debug("Function identity set", map[string]interface{}{
		"function_name": name,
		"version":       version,
	})
	if after := r.labels.FunctionName(); after != before {
		for _, fn := range r.onIdentity {
			fn(after)
		}
	}
}

// ClearFunctionIdentity resets the identity so the registry is not ready again.
// It exists for tests.
func (r *Registry) ClearFunctionIdentity() {
	r.labels.ClearFunctionIdentity()
}

// IdentityKnown reports whether function name and version are both set.
func (r *Registry) IdentityKnown() bool {
	return r.labels.IdentityKnown()
}

// SetTenant sets the tenant and asserts_tenant labels.
func (r *Registry) SetTenant(tenant string) {
	r.labels.SetTenant(tenant)
}

// RenderText returns every registered metric family in the Prometheus text
// format with the instance labels on each series. It returns false when the
// identity is not known yet or gathering failed; partial output is never
// returned.
func (r *Registry) RenderText() (string, bool) {
	if mb := r.memorySize(); mb > 0 {
		r.memoryLimit.Set(float64(mb))
	}

	if !r.labels.IdentityKnown() {
		return "", false
	}

	families, err := r.prom.Gather()
	if err != nil {
		r.logger.Error("Failed to gather metrics", map[string]interface{}{
			"error": err,
		})
		return "", false
	}

	extra := r.labels.pairs()
	var buf bytes.Buffer
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			m.Label = mergeLabels(m.GetLabel(), extra)
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			r.logger.Error("Failed to encode metrics", map[string]interface{}{
				"error":  err,
				"family": mf.GetName(),
			})
			return "", false
		}
	}

	text := buf.String()
	if r.debug {
		r.logger.Debug("Gathered metrics", map[string]interface{}{
			"text": "\n" + text,
		})
	}
	return text, true
}

var _ core.MetricsSink = (*Registry)(nil)
