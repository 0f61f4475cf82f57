package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket limiter sized in requests per second.
type RateLimiter struct {
	mu sync.Mutex

	rps    float64
	tokens float64
	last   time.Time

	totalConsumed int64
	last429       time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 1.0
	}
	return &RateLimiter{
		rps:    rps,
		tokens: rps,
		last:   time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		needed := 1.0 - r.tokens
		wait := time.Duration(needed / r.rps * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Record429 drains the bucket when the provider signals throttling, so
// subsequent calls back off for at least retryAfter.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429 = time.Now()
	r.tokens = 0
	if retryAfter > 0 {
		// Push the refill clock forward so tokens stay empty until then.
		r.last = time.Now().Add(retryAfter)
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	if now.Before(r.last) {
		return
	}
	elapsed := now.Sub(r.last).Seconds()
	r.tokens += elapsed * r.rps
	if r.tokens > r.rps {
		r.tokens = r.rps
	}
	r.last = now
}
