// Package clients provides the HTTP client used for remote STORE backends:
// a tuned transport with optional HTTP/2, plus rate limiting, a circuit
// breaker and request metrics.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// HTTPClient wraps http.Client with rate limiting and a circuit breaker.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	metrics        *HTTPMetrics
	circuitBreaker *CircuitBreaker
	rateLimiter    RateLimiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	// Timeouts
	DialTimeout    time.Duration `json:"dial_timeout"`
	RequestTimeout time.Duration `json:"request_timeout"`

	// Basic authentication; empty Username disables it
	Username string `json:"username"`
	Password string `json:"-"`

	UserAgent string `json:"user_agent"`

	// Rate limiting (0 = unlimited)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	ResetTimeout          time.Duration `json:"reset_timeout"`
}

// DefaultHTTPConfig returns the defaults used for the PASS API.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		RequestTimeout:        30 * time.Second,
		UserAgent:             "grantsync/1.0",
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		ResetTimeout:          30 * time.Second,
	}
}

// NewHTTPClient creates a client from config. A nil config means defaults.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	logger = logger.With(zap.String("component", "http_client"))

	client := &HTTPClient{
		config:  config,
		logger:  logger,
		metrics: NewHTTPMetrics(),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		} else {
			logger.Debug("HTTP/2 enabled")
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		client.rateLimiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst)
	}
	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			ResetTimeout:     config.ResetTimeout,
		}, logger)
	}

	return client
}

// NewRequest builds a request carrying the client's default headers.
func (c *HTTPClient) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	return req, nil
}

// Do sends req after the rate limiter and circuit breaker agree. Transport
// errors and 5xx responses count as circuit failures.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			c.metrics.RecordRejected("rate_limit")
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		c.metrics.RecordRejected("circuit_open")
		return nil, ErrCircuitOpen
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.RecordRequest(req.Method, status, time.Since(start), err)

	if c.circuitBreaker != nil {
		if err != nil || status >= 500 {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
	}
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	stats := c.metrics.Snapshot()
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.State().String()
	}
	return stats
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
