package handler

import (
	"context"
	"sync"
)

// settleCell holds the first result delivered to it. Later deliveries are
// ignored.
type settleCell[R any] struct {
	once   sync.Once
	done   chan struct{}
	result R
	err    error
}

func newSettleCell[R any]() *settleCell[R] {
	return &settleCell[R]{done: make(chan struct{})}
}

// settle stores result and err if nothing was stored yet.
// It has the Callback signature so it can be handed to the entry point.
func (c *settleCell[R]) settle(result R, err error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

// wait blocks until the cell is settled or ctx is done. Context expiry
// settles the cell with ctx.Err() unless a result won the race.
func (c *settleCell[R]) wait(ctx context.Context) (R, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		var zero R
		c.settle(zero, ctx.Err())
	}
	return c.result, c.err
}
