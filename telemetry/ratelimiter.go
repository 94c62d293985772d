package telemetry

import (
	"sync"
	"time"
)

// RateLimiter lets one action through per interval and counts the ones it
// turned away since the last allowed action.
type RateLimiter struct {
	interval   time.Duration
	lastTime   time.Time
	suppressed int
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
	}
}

// Allow returns true if an action is allowed based on rate limiting
func (r *RateLimiter) Allow() bool {
	ok, _ := r.AllowWithSuppressed()
	return ok
}

// AllowWithSuppressed is Allow that also reports how many actions were
// rejected since the previous allowed one. The count resets on success.
func (r *RateLimiter) AllowWithSuppressed() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.lastTime.IsZero() || now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		n := r.suppressed
		r.suppressed = 0
		return true, n
	}
	r.suppressed++
	return false, 0
}
