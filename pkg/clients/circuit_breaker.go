package clients

import (
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned instead of calling a backend whose circuit is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a single probe through to test if the backend has recovered
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerConfig is the configuration for circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
}

// CircuitBreaker stops calls to a backend after repeated failures. Once the
// circuit opens every call fails fast until ResetTimeout has passed.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	mu  sync.Mutex
	now func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
	}
}

// Execute runs fn unless the circuit is open, and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// Allow reports whether a request may proceed. After ResetTimeout an open
// circuit lets exactly one probe through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.ResetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.probing = true
		cb.logger.Info("circuit breaker half-open")
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.logger.Info("circuit breaker closed")
	}
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.probing = false
}

// RecordFailure counts a failure. Reaching the threshold, or failing the
// half-open probe, opens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.probing = false
	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.logger.Warn("circuit breaker opened",
			zap.Int("consecutive_failures", cb.consecutiveFailures),
			zap.Time("retry_after", cb.openedAt.Add(cb.config.ResetTimeout)))
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
