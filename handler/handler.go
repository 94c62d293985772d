// Package handler wraps function entry points so every invocation is counted
// and timed, whichever calling convention the entry point uses.
package handler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/itsneelabh/lambdametrics/core"
)

// Callback completes a callback-style invocation. Only the first call counts.
type Callback[R any] func(result R, err error)

// AsyncFunc returns its result directly.
type AsyncFunc[E, R any] func(ctx context.Context, event E) (R, error)

// SyncFunc completes by calling done, possibly from another goroutine.
type SyncFunc[E, R any] func(ctx context.Context, event E, done Callback[R])

// SyncReturningFunc takes a callback and also returns a result. Whichever of
// the two settles first decides the outcome.
type SyncReturningFunc[E, R any] func(ctx context.Context, event E, done Callback[R]) (R, error)

// Style names the calling convention of a Handler.
type Style int

const (
	StyleAsync Style = iota
	StyleSync
	StyleSyncReturning
)

func (s Style) String() string {
	switch s {
	case StyleAsync:
		return "async"
	case StyleSync:
		return "sync"
	case StyleSyncReturning:
		return "sync-returning"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// Handler is an entry point tagged with its calling convention.
// Build one with Async, Sync, SyncReturning or FromFunc.
type Handler[E, R any] struct {
	style         Style
	async         AsyncFunc[E, R]
	sync          SyncFunc[E, R]
	syncReturning SyncReturningFunc[E, R]
}

// Async tags a value-returning entry point.
func Async[E, R any](fn AsyncFunc[E, R]) Handler[E, R] {
	return Handler[E, R]{style: StyleAsync, async: fn}
}

// Sync tags a callback-completing entry point.
func Sync[E, R any](fn SyncFunc[E, R]) Handler[E, R] {
	return Handler[E, R]{style: StyleSync, sync: fn}
}

// SyncReturning tags an entry point that both takes a callback and returns.
func SyncReturning[E, R any](fn SyncReturningFunc[E, R]) Handler[E, R] {
	return Handler[E, R]{style: StyleSyncReturning, syncReturning: fn}
}

// Style reports the calling convention.
func (h Handler[E, R]) Style() Style {
	return h.style
}

// FromFunc classifies an arbitrary function value once. It accepts the three
// conventions with either the named or the plain function types, plus
// func(E) (R, error) for entry points that ignore the context.
func FromFunc[E, R any](fn any) (Handler[E, R], error) {
	switch f := fn.(type) {
	case nil:
		return Handler[E, R]{}, unsupported("nil handler")
	case AsyncFunc[E, R]:
		return Async(f), nil
	case func(context.Context, E) (R, error):
		return Async(AsyncFunc[E, R](f)), nil
	case func(E) (R, error):
		return Async(func(_ context.Context, event E) (R, error) { return f(event) }), nil
	case SyncFunc[E, R]:
		return Sync(f), nil
	case func(context.Context, E, Callback[R]):
		return Sync(SyncFunc[E, R](f)), nil
	case func(context.Context, E, func(R, error)):
		return Sync(func(ctx context.Context, event E, done Callback[R]) { f(ctx, event, done) }), nil
	case SyncReturningFunc[E, R]:
		return SyncReturning(f), nil
	case func(context.Context, E, Callback[R]) (R, error):
		return SyncReturning(SyncReturningFunc[E, R](f)), nil
	case func(context.Context, E, func(R, error)) (R, error):
		return SyncReturning(func(ctx context.Context, event E, done Callback[R]) (R, error) {
			return f(ctx, event, done)
		}), nil
	}

	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return Handler[E, R]{}, unsupported(fmt.Sprintf("%T is not a function", fn))
	}
	return Handler[E, R]{}, unsupported(fmt.Sprintf("%s takes %d arguments and returns %d values", t, t.NumIn(), t.NumOut()))
}

func unsupported(msg string) error {
	return &core.LayerError{
		Op:      "handler.FromFunc",
		Kind:    "handler",
		Message: "unsupported handler signature: " + msg,
		Err:     core.ErrUnsupportedHandler,
	}
}

// normalize turns every convention into the value-returning one.
func (h Handler[E, R]) normalize() AsyncFunc[E, R] {
	switch h.style {
	case StyleSync:
		fn := h.sync
		return func(ctx context.Context, event E) (R, error) {
			cell := newSettleCell[R]()
			fn(ctx, event, cell.settle)
			return cell.wait(ctx)
		}
	case StyleSyncReturning:
		fn := h.syncReturning
		return func(ctx context.Context, event E) (R, error) {
			cell := newSettleCell[R]()
			result, err := fn(ctx, event, cell.settle)
			cell.settle(result, err)
			return cell.wait(ctx)
		}
	default:
		return h.async
	}
}
