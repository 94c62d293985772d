package remotewrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsneelabh/lambdametrics/core"
)

func TestCountersRecordStatus(t *testing.T) {
	tests := []struct {
		status   int
		rejected bool
	}{
		{200, false},
		{204, false},
		{299, false},
		{301, true},
		{400, true},
		{401, true},
		{503, true},
	}

	for _, tt := range tests {
		var c counters
		err := c.recordStatus(tt.status)
		if tt.rejected {
			assert.True(t, errors.Is(err, core.ErrRemoteWriteRejected), "status %d", tt.status)
			assert.Equal(t, int64(1), c.snapshot(false).Failed)
		} else {
			assert.NoError(t, err, "status %d", tt.status)
			assert.Equal(t, int64(1), c.snapshot(false).Succeeded)
		}
	}
}

func TestCountersLastOutcome(t *testing.T) {
	var c counters
	_ = c.recordStatus(500)
	c.recordError(errors.New("dial tcp: connection refused"))

	s := c.snapshot(true)
	assert.True(t, s.Running)
	assert.Equal(t, int64(2), s.Failed)
	assert.Equal(t, 0, s.LastStatus)
	assert.Equal(t, "dial tcp: connection refused", s.LastError)
	assert.False(t, s.LastPush.IsZero())

	_ = c.recordStatus(204)
	s = c.snapshot(true)
	assert.Equal(t, 204, s.LastStatus)
	assert.Empty(t, s.LastError)
}
