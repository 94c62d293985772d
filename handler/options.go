package handler

import "github.com/itsneelabh/lambdametrics/core"

// Options controls how Wrap treats failures and where measurements go.
type Options struct {
	// RethrowAfterCapture returns the failure to the caller after it is
	// counted. When false the failure is swallowed and the zero result is
	// returned with a nil error.
	RethrowAfterCapture bool

	// CaptureAllSettledReasons counts one error per failed element when the
	// result is a settled collection ([]Outcome, SettledResult or a batch
	// response with item failures).
	CaptureAllSettledReasons bool

	IdentityResolver IdentityResolver

	// Sinks receive every measurement in addition to the recorder.
	Sinks []core.MetricsSink

	Logger core.Logger
}

// Option configures Wrap.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		RethrowAfterCapture: true,
		IdentityResolver:    ResolveIdentity,
		Logger:              core.NoOpLogger{},
	}
}

// WithRethrowAfterCapture sets whether failures reach the caller.
func WithRethrowAfterCapture(rethrow bool) Option {
	return func(o *Options) {
		o.RethrowAfterCapture = rethrow
	}
}

// WithCaptureAllSettledReasons enables per-element error counting.
func WithCaptureAllSettledReasons(capture bool) Option {
	return func(o *Options) {
		o.CaptureAllSettledReasons = capture
	}
}

// WithIdentityResolver replaces the default identity resolver.
func WithIdentityResolver(r IdentityResolver) Option {
	return func(o *Options) {
		if r != nil {
			o.IdentityResolver = r
		}
	}
}

// WithSinks adds measurement sinks.
func WithSinks(sinks ...core.MetricsSink) Option {
	return func(o *Options) {
		for _, s := range sinks {
			if s != nil {
				o.Sinks = append(o.Sinks, s)
			}
		}
	}
}

// WithLogger sets the logger for failure diagnostics.
func WithLogger(l core.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
