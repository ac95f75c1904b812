package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. A zero or negative rate disables it.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst float64
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to
// burst. It starts full.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	r := &RateLimiter{rate: rate, burst: float64(burst), now: time.Now}
	r.tokens = r.burst
	r.lastUpdate = r.now()
	return r
}

// PerMinute is NewRateLimiter for a requests-per-minute budget.
func PerMinute(n int) *RateLimiter {
	return NewRateLimiter(float64(n)/60, max(1, n/10))
}

// reserve takes a token if one is available, otherwise it reports how long
// until the next one.
func (r *RateLimiter) reserve() (time.Duration, bool) {
	if r == nil || r.rate <= 0 {
		return 0, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.tokens = min(r.burst, r.tokens+now.Sub(r.lastUpdate).Seconds()*r.rate)
	r.lastUpdate = now

	if r.tokens >= 1 {
		r.tokens--
		return 0, true
	}
	return time.Duration((1 - r.tokens) / r.rate * float64(time.Second)), false
}

// Allow reports whether a call may proceed now, taking a token if so.
func (r *RateLimiter) Allow() bool {
	_, ok := r.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := r.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
