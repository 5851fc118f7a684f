package logging

import (
	"sync"
	"time"
)

// RateLimiter allows at most one event per interval.
type RateLimiter struct {
	interval time.Duration
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter returns a limiter; an interval of zero allows everything.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Allow reports whether an event may proceed now. A non-positive interval
// allows everything.
func (r *RateLimiter) Allow() bool {
	if r.interval <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		return true
	}
	return false
}
