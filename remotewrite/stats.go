package remotewrite

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/lambdametrics/core"
)

// Stats is a point-in-time report of the flusher's activity.
type Stats struct {
	Running    bool      `json:"running"`
	Attempted  int64     `json:"attempted"`
	Succeeded  int64     `json:"succeeded"`
	Failed     int64     `json:"failed"`
	Skipped    int64     `json:"skipped"`
	LastStatus int       `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastPush   time.Time `json:"last_push,omitempty"`
}

// counters are updated from push goroutines.
type counters struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64

	mu         sync.Mutex
	lastStatus int
	lastError  string
	lastPush   time.Time
}

// recordStatus counts a completed push. Any non-2xx status is a rejection,
// returned as an error matching core.ErrRemoteWriteRejected.
func (c *counters) recordStatus(status int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatus = status
	c.lastPush = time.Now()
	if status >= 200 && status < 300 {
		c.succeeded.Add(1)
		c.lastError = ""
		return nil
	}
	c.failed.Add(1)
	err := fmt.Errorf("%w: unexpected status %d", core.ErrRemoteWriteRejected, status)
	c.lastError = err.Error()
	return err
}

func (c *counters) recordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed.Add(1)
	c.lastStatus = 0
	c.lastError = err.Error()
	c.lastPush = time.Now()
}

func (c *counters) snapshot(running bool) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Running:    running,
		Attempted:  c.attempted.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Skipped:    c.skipped.Load(),
		LastStatus: c.lastStatus,
		LastError:  c.lastError,
		LastPush:   c.lastPush,
	}
}
