package clients

import (
	"context"
	"sync"
	"time"
)

// RateLimiter throttles outgoing requests.
type RateLimiter interface {
	// Allow checks if a request is allowed right now
	Allow() bool

	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error

	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// RateLimiterStats describes the limiter for logs and debugging.
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	CurrentTokens   float64       `json:"current_tokens"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
}

// TokenBucketRateLimiter implements the token bucket algorithm. Tokens are
// added at a constant rate and consumed by requests.
type TokenBucketRateLimiter struct {
	rate     float64
	burst    int
	tokens   float64
	lastTime time.Time

	allowedRequests int64
	blockedRequests int64
	totalWaitTime   time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// NewTokenBucketRateLimiter creates a limiter issuing rate tokens per second
// with at most burst tokens banked. The bucket starts full.
func NewTokenBucketRateLimiter(rate float64, burst int) *TokenBucketRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketRateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		tb.allowedRequests++
		return true
	}
	tb.blockedRequests++
	return false
}

// Wait blocks until a token is available.
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := tb.now()

	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1.0 {
			tb.tokens--
			tb.allowedRequests++
			tb.totalWaitTime += tb.now().Sub(start)
			tb.mu.Unlock()
			return nil
		}
		deficit := 1.0 - tb.tokens
		wait := time.Duration(deficit / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			tb.mu.Lock()
			tb.blockedRequests++
			tb.mu.Unlock()
			return ctx.Err()
		}
	}
}

// refill adds tokens based on elapsed time. Callers hold mu.
func (tb *TokenBucketRateLimiter) refill() {
	now := tb.now()
	tb.tokens += now.Sub(tb.lastTime).Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastTime = now
}

// GetStats returns rate limiter statistics
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	var avgWait time.Duration
	if tb.allowedRequests > 0 {
		avgWait = tb.totalWaitTime / time.Duration(tb.allowedRequests)
	}
	return RateLimiterStats{
		Rate:            tb.rate,
		Burst:           tb.burst,
		AllowedRequests: tb.allowedRequests,
		BlockedRequests: tb.blockedRequests,
		CurrentTokens:   tb.tokens,
		AverageWaitTime: avgWait,
	}
}
