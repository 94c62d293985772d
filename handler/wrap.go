package handler

import (
	"context"
	"time"

	"github.com/itsneelabh/lambdametrics/core"
)

// Recorder is the metric set an invocation reports to. It also owns the
// function identity, which the first invocation completes when it is missing.
type Recorder interface {
	core.MetricsSink
	IdentityKnown() bool
	SetFunctionIdentity(name, version string)
}

// Func is the uniform entry point produced by Wrap. It can be passed to
// lambda.Start directly.
type Func[E, R any] func(ctx context.Context, event E) (R, error)

// Wrap instruments h. For every call it completes the identity if needed,
// counts the invocation, runs the handler, records the elapsed time and,
// on failure, counts an error. A panic in the handler is a failure; it is
// re-raised with the original value when failures are rethrown.
func Wrap[E, R any](h Handler[E, R], rec Recorder, opts ...Option) Func[E, R] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	w := &wrapper[E, R]{
		run:  h.normalize(),
		rec:  rec,
		opts: o,
	}
	if rec != nil {
		w.sinks = append(w.sinks, rec)
	}
	w.sinks = append(w.sinks, o.Sinks...)

	return w.invoke
}

// WrapFunc classifies fn with FromFunc and wraps it.
func WrapFunc[E, R any](fn any, rec Recorder, opts ...Option) (Func[E, R], error) {
	h, err := FromFunc[E, R](fn)
	if err != nil {
		return nil, err
	}
	return Wrap(h, rec, opts...), nil
}

type wrapper[E, R any] struct {
	run   AsyncFunc[E, R]
	rec   Recorder
	sinks []core.MetricsSink
	opts  Options
}

// callOutcome is what one run of the handler produced.
type callOutcome[R any] struct {
	result     R
	err        error
	panicValue any
	panicked   bool
}

func (w *wrapper[E, R]) invoke(ctx context.Context, event E) (R, error) {
	w.completeIdentity(ctx)
	for _, s := range w.sinks {
		s.RecordInvocation()
	}

	start := time.Now()
	out := w.call(ctx, event)
	elapsed := time.Since(start).Seconds()

	for _, s := range w.sinks {
		s.RecordLatency(elapsed)
	}

	failed := out.panicked || out.err != nil
	if failed {
		w.recordErrors(1)
	} else if w.opts.CaptureAllSettledReasons {
		if reasons, ok := settledReasons(any(out.result)); ok && len(reasons) > 0 {
			w.recordErrors(len(reasons))
			w.opts.Logger.Debug("Settled result contains failures", map[string]interface{}{
				"failures": len(reasons),
				"first":    reasons[0].Error(),
			})
		}
	}

	var zero R
	switch {
	case out.panicked:
		if w.opts.RethrowAfterCapture {
			panic(out.panicValue)
		}
		w.opts.Logger.Error("Handler panicked, swallowing", map[string]interface{}{
			"error": (&core.PanicError{Value: out.panicValue}).Error(),
		})
		return zero, nil
	case out.err != nil:
		if w.opts.RethrowAfterCapture {
			return out.result, out.err
		}
		w.opts.Logger.Warn("Handler failed, swallowing error", map[string]interface{}{
			"error": out.err,
		})
		return zero, nil
	}
	return out.result, nil
}

func (w *wrapper[E, R]) call(ctx context.Context, event E) (out callOutcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			out.panicked = true
			out.panicValue = r
		}
	}()
	out.result, out.err = w.run(ctx, event)
	return out
}

func (w *wrapper[E, R]) completeIdentity(ctx context.Context) {
	if w.rec == nil || w.rec.IdentityKnown() {
		return
	}
	if id, ok := w.opts.IdentityResolver(ctx); ok {
		w.rec.SetFunctionIdentity(id.FunctionName, id.FunctionVersion)
	}
}

func (w *wrapper[E, R]) recordErrors(n int) {
	for i := 0; i < n; i++ {
		for _, s := range w.sinks {
			s.RecordError()
		}
	}
}
