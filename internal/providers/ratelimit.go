package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerMinute is used when no rate limit is configured.
const DefaultRequestsPerMinute = 150

// RateLimiter is a token bucket refilled continuously over one minute.
// Concurrent card and image tasks share one limiter per provider.
type RateLimiter struct {
	mu sync.Mutex

	perMinute  int
	tokens     float64
	lastUpdate time.Time
	pauseUntil time.Time

	consumed int64
	waited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		tokens:     float64(requestsPerMinute),
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		r.refill(now)

		var wait time.Duration
		switch {
		case now.Before(r.pauseUntil):
			wait = r.pauseUntil.Sub(now)
		case r.tokens >= 1:
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		default:
			perSecond := float64(r.perMinute) / 60
			wait = time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// Backoff drains the bucket and pauses all callers for d after a 429.
func (r *RateLimiter) Backoff(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = 0
	if until := time.Now().Add(d); until.After(r.pauseUntil) {
		r.pauseUntil = until
	}
}

// Status returns current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(time.Now())
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	r.tokens += elapsed * float64(r.perMinute) / 60
	if limit := float64(r.perMinute); r.tokens > limit {
		r.tokens = limit
	}
}
