package clients

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantsync_http_request_duration_seconds",
			Help:    "Latency of HTTP requests to the STORE",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)

	requestsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantsync_http_requests_rejected_total",
			Help: "HTTP requests refused before being sent",
		},
		[]string{"reason"},
	)
)

// HTTPMetrics tracks request counts and latency for one client.
type HTTPMetrics struct {
	totalRequests  int64
	failedRequests int64
	totalLatency   time.Duration
	maxLatency     time.Duration
	byStatus       map[int]int64

	mu sync.Mutex
}

// NewHTTPMetrics creates an empty tracker.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{byStatus: make(map[int]int64)}
}

// RecordRequest records one round trip. status is 0 when the request failed
// before a response arrived.
func (hm *HTTPMetrics) RecordRequest(method string, status int, latency time.Duration, err error) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	requestDuration.WithLabelValues(method, code).Observe(latency.Seconds())

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.totalRequests++
	hm.totalLatency += latency
	if latency > hm.maxLatency {
		hm.maxLatency = latency
	}
	if err != nil || status >= 500 {
		hm.failedRequests++
	}
	if status > 0 {
		hm.byStatus[status]++
	}
}

// RecordRejected counts a request refused by the rate limiter or circuit breaker.
func (hm *HTTPMetrics) RecordRejected(reason string) {
	requestsRejected.WithLabelValues(reason).Inc()
	hm.mu.Lock()
	hm.failedRequests++
	hm.mu.Unlock()
}

// Snapshot returns the current statistics.
func (hm *HTTPMetrics) Snapshot() HTTPStats {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	stats := HTTPStats{
		TotalRequests:  hm.totalRequests,
		FailedRequests: hm.failedRequests,
		MaxLatency:     hm.maxLatency,
		ByStatus:       make(map[int]int64, len(hm.byStatus)),
	}
	for k, v := range hm.byStatus {
		stats.ByStatus[k] = v
	}
	if hm.totalRequests > 0 {
		stats.AverageLatency = hm.totalLatency / time.Duration(hm.totalRequests)
	}
	return stats
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64         `json:"total_requests"`
	FailedRequests int64         `json:"failed_requests"`
	AverageLatency time.Duration `json:"average_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
	ByStatus       map[int]int64 `json:"by_status"`
	CircuitState   string        `json:"circuit_state,omitempty"`
}
