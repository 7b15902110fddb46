package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tb := NewTokenBucketRateLimiter(2, 2)
	tb.now = clock.now
	tb.lastTime = clock.t

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket drained")

	clock.advance(500 * time.Millisecond)
	assert.True(t, tb.Allow(), "one token refilled")
	assert.False(t, tb.Allow())

	clock.advance(10 * time.Second)
	stats := tb.GetStats()
	assert.Equal(t, int64(3), stats.AllowedRequests)
	assert.Equal(t, int64(2), stats.BlockedRequests)
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucketRateLimiter(0.001, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestCircuitBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}, zap.NewNop())
	cb.now = clock.now

	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	clock.advance(time.Minute)
	assert.True(t, cb.Allow(), "probe after reset timeout")
	assert.False(t, cb.Allow(), "only one probe")
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State(), "failed probe reopens")

	clock.advance(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreakerExecute(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}, zap.NewNop())
	boom := assert.AnError

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestHTTPClientOpensCircuitOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "fedoraAdmin", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "grantsync/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.Username, cfg.Password = "fedoraAdmin", "secret"
	cfg.FailureThreshold = 2
	c := NewHTTPClient(cfg, zap.NewNop())
	defer func() { _ = c.Close() }()

	for i := 0; i < 2; i++ {
		req, err := c.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := c.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}

	req, err := c.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.FailedRequests)
	assert.Equal(t, int64(2), stats.ByStatus[http.StatusServiceUnavailable])
	assert.Equal(t, "open", stats.CircuitState)
}
