package llm

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Millisecond, HalfOpenMax: 1})
	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed before threshold, got %v", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open at threshold, got %v", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("expected Allow() to be false while open")
	}
}

func TestCircuitBreakerHalfOpenAfterBackoff(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Millisecond, HalfOpenMax: 1})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half_open after backoff elapsed, got %v", cb.State())
	}
	if !cb.Allow() {
		t.Fatalf("expected one probe to be allowed in half_open")
	}
	if cb.Allow() {
		t.Fatalf("expected second probe to be blocked once HalfOpenMax reached")
	}
}

func TestCircuitBreakerRecordSuccessResetsState(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Millisecond, HalfOpenMax: 1})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow() // transition to half-open, consume the probe
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after success, got %v", cb.State())
	}
}

func TestExponentialBackoffDoublesAndCaps(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	first := cb.GetExponentialBackoffDuration()
	cb.consecutiveOpen = 10 // simulate many re-opens
	capped := cb.GetExponentialBackoffDuration()
	if first != time.Second {
		t.Fatalf("expected base backoff 1s, got %v", first)
	}
	if capped != 5*time.Minute {
		t.Fatalf("expected backoff capped at 5m, got %v", capped)
	}
}
