package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRateLimitPerMinute caps requests per user per fixed minute window.
const DefaultRateLimitPerMinute = 10

// RateLimiter enforces a fixed-window per-user request limit.
type RateLimiter interface {
	// Allow reports whether the user may make a request now and counts it
	// against the current window if so.
	Allow(userID string) bool
}

type rateLimiter struct {
	limit int64
	now   func() time.Time

	mu        sync.Mutex
	windows   map[string]*userWindow
	lastSweep time.Time
}

type userWindow struct {
	start time.Time
	count atomic.Int64
}

// NewRateLimiter creates a fixed-window rate limiter. A non-positive limit
// uses the default.
func NewRateLimiter(limitPerMinute int) RateLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = DefaultRateLimitPerMinute
	}
	return &rateLimiter{
		limit:   int64(limitPerMinute),
		now:     time.Now,
		windows: make(map[string]*userWindow),
	}
}

var _ RateLimiter = (*rateLimiter)(nil)

func (r *rateLimiter) Allow(userID string) bool {
	now := r.now()

	r.mu.Lock()
	r.sweepLocked(now)
	window, ok := r.windows[userID]
	if !ok || now.Sub(window.start) >= time.Minute {
		window = &userWindow{start: now}
		r.windows[userID] = window
	}
	r.mu.Unlock()

	return window.count.Add(1) <= r.limit
}

// sweepLocked drops expired windows so the map does not grow with every
// user ever seen. Runs at most once per minute. Caller holds r.mu.
func (r *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < time.Minute {
		return
	}
	r.lastSweep = now
	for userID, window := range r.windows {
		if now.Sub(window.start) >= time.Minute {
			delete(r.windows, userID)
		}
	}
}
