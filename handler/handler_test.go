package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/lambdametrics/core"
)

type orderEvent struct {
	ID string
}

type response struct {
	StatusCode int
}

func TestFromFunc(t *testing.T) {
	tests := []struct {
		name  string
		fn    any
		style Style
	}{
		{
			name:  "plain async",
			fn:    func(context.Context, orderEvent) (response, error) { return response{}, nil },
			style: StyleAsync,
		},
		{
			name:  "named async",
			fn:    AsyncFunc[orderEvent, response](func(context.Context, orderEvent) (response, error) { return response{}, nil }),
			style: StyleAsync,
		},
		{
			name:  "async without context",
			fn:    func(orderEvent) (response, error) { return response{}, nil },
			style: StyleAsync,
		},
		{
			name:  "callback",
			fn:    func(context.Context, orderEvent, Callback[response]) {},
			style: StyleSync,
		},
		{
			name:  "plain callback",
			fn:    func(context.Context, orderEvent, func(response, error)) {},
			style: StyleSync,
		},
		{
			name:  "named callback",
			fn:    SyncFunc[orderEvent, response](func(context.Context, orderEvent, Callback[response]) {}),
			style: StyleSync,
		},
		{
			name: "callback and return",
			fn: func(context.Context, orderEvent, Callback[response]) (response, error) {
				return response{}, nil
			},
			style: StyleSyncReturning,
		},
		{
			name: "plain callback and return",
			fn: func(context.Context, orderEvent, func(response, error)) (response, error) {
				return response{}, nil
			},
			style: StyleSyncReturning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := FromFunc[orderEvent, response](tt.fn)
			require.NoError(t, err)
			assert.Equal(t, tt.style, h.Style())
		})
	}
}

func TestFromFuncUnsupported(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a function", 42},
		{"wrong event type", func(context.Context, string) (response, error) { return response{}, nil }},
		{"too many arguments", func(context.Context, orderEvent, Callback[response], int) {}},
		{"no error return", func(context.Context, orderEvent) response { return response{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFunc[orderEvent, response](tt.fn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrUnsupportedHandler))
			assert.Contains(t, err.Error(), "unsupported handler signature")
		})
	}
}

func TestFromFuncReportsArity(t *testing.T) {
	_, err := FromFunc[orderEvent, response](func(a, b, c, d int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 4 arguments and returns 0 values")
}

func TestStyleString(t *testing.T) {
	assert.Equal(t, "async", StyleAsync.String())
	assert.Equal(t, "sync", StyleSync.String())
	assert.Equal(t, "sync-returning", StyleSyncReturning.String())
	assert.Equal(t, "Style(9)", Style(9).String())
}

func TestNormalizeAsyncWithoutContext(t *testing.T) {
	h, err := FromFunc[orderEvent, response](func(e orderEvent) (response, error) {
		if e.ID == "" {
			return response{}, errors.New("missing id")
		}
		return response{StatusCode: 200}, nil
	})
	require.NoError(t, err)

	res, err := h.normalize()(context.Background(), orderEvent{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	_, err = h.normalize()(context.Background(), orderEvent{})
	assert.EqualError(t, err, "missing id")
}

func TestSettleCellFirstWins(t *testing.T) {
	cell := newSettleCell[int]()
	cell.settle(1, nil)
	cell.settle(2, errors.New("late"))

	v, err := cell.wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSettleCellConcurrent(t *testing.T) {
	cell := newSettleCell[int]()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cell.settle(i, nil)
		}(i)
	}

	v, err := cell.wait(context.Background())
	wg.Wait()
	assert.NoError(t, err)

	// every later read sees the same winner
	v2, _ := cell.wait(context.Background())
	assert.Equal(t, v, v2)
}

func TestSettleCellContextExpiry(t *testing.T) {
	cell := newSettleCell[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cell.wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// a callback arriving after expiry does not change the outcome
	cell.settle(7, nil)
	v, err := cell.wait(context.Background())
	assert.Equal(t, 0, v)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
