package llm

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	ResetTimeout     time.Duration // initial cooldown before half-open
	HalfOpenMax      int           // probe requests allowed while half-open
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures, with a
// base 500ms backoff (doubling, capped at 5 minutes). It shares the 500ms
// base with the cloud OCR retry backoff, which caps at 8s instead.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     500 * time.Millisecond,
		HalfOpenMax:      1,
	}
}

// CircuitBreaker guards calls to a remote provider (cloud OCR, vision AI)
// with exponential backoff after repeated failures.
type CircuitBreaker struct {
	mu              sync.Mutex
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	lastFailureAt   time.Time
	halfOpenCount   int
	consecutiveOpen int
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: cfg, state: CircuitClosed}
}

// GetExponentialBackoffDuration doubles the reset timeout for every
// consecutive re-open, capped at 5 minutes.
func (cb *CircuitBreaker) GetExponentialBackoffDuration() time.Duration {
	base := cb.config.ResetTimeout
	multiplier := 1 << uint(cb.consecutiveOpen)
	backoff := time.Duration(multiplier) * base
	const maxBackoff = 5 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// State reports the current state, first checking whether an open circuit
// has waited long enough to move to half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkAndTransition()
	return cb.state
}

func (cb *CircuitBreaker) checkAndTransition() {
	if cb.state == CircuitOpen && time.Since(cb.lastFailureAt) > cb.GetExponentialBackoffDuration() {
		cb.state = CircuitHalfOpen
		cb.halfOpenCount = 0
	}
}

// Allow reports whether a call should be let through right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.checkAndTransition()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		return false
	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.config.HalfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess resets all failure state and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.consecutiveOpen = 0
	cb.state = CircuitClosed
	cb.halfOpenCount = 0
}

// RecordFailure registers a failed call, possibly opening the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailureAt = time.Now()
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.consecutiveOpen++
		return
	}
	if cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
	}
}
