package go_bcapi

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState string

const (
	// CircuitClosed means the circuit is allowing operations through normally.
	CircuitClosed CircuitState = "closed"

	// CircuitOpen means the circuit is rejecting operations after too many failures.
	CircuitOpen CircuitState = "open"

	// CircuitHalfOpen means the circuit is testing whether the node has recovered.
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreaker prevents a client from hammering a node that is down,
// rebooting or unreachable over the mesh. Consecutive failures trip the
// circuit; while open, operations fail fast with ErrCircuitOpen instead
// of burning a connection attempt per call. After the reset timeout one
// probe operation is allowed through, and its outcome decides whether
// the circuit closes again.
//
// The breaker is caller-side plumbing: sessions never route their own
// traffic through one.
type CircuitBreaker struct {
	maxFailures  int           // failures before opening the circuit
	resetTimeout time.Duration // how long to stay open before probing
	failures     int           // consecutive failure count
	lastFailure  time.Time
	state        CircuitState
	mu           sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker that opens after
// maxFailures consecutive failures and probes again after resetTimeout.
// A maxFailures of 0 disables automatic opening.
//
//	cb := NewCircuitBreaker(3, 30*time.Second)
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
// When the circuit is open the function is not called and the returned
// error matches ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err)
	return err
}

// beforeRequest gates the operation on the current state, transitioning
// open → half-open once the reset timeout has elapsed.
func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			Debug("Circuit breaker transitioning to half-open state")
			return nil
		}
		return fmt.Errorf("%w (last failure %v ago)",
			ErrCircuitOpen, time.Since(cb.lastFailure).Round(time.Second))

	case CircuitHalfOpen, CircuitClosed:
		return nil

	default:
		return fmt.Errorf("bcapi: circuit breaker in unknown state %q", cb.state)
	}
}

// afterRequest records the outcome and updates the state machine.
func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
}

// recordFailure counts the failure and opens the circuit at the
// threshold. A failed half-open probe re-opens immediately.
func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.maxFailures > 0 && cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			Warning("Circuit breaker opened after %d failures", cb.failures)
		}

	case CircuitHalfOpen:
		cb.state = CircuitOpen
		Debug("Circuit breaker re-opened after failed probe")
	}
}

// recordSuccess clears the failure count; a successful half-open probe
// closes the circuit.
func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitClosed
		cb.failures = 0
		Info("Circuit breaker closed after successful probe")

	case CircuitClosed:
		cb.failures = 0
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen returns true if the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == CircuitOpen
}

// IsClosed returns true if the circuit is currently closed.
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == CircuitClosed
}

// IsHalfOpen returns true if the circuit is currently half-open.
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.State() == CircuitHalfOpen
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to closed with zero failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	Debug("Circuit breaker manually reset")
}

// String returns a human-readable summary of the breaker state.
func (cb *CircuitBreaker) String() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fmt.Sprintf("CircuitBreaker{state=%s, failures=%d/%d, lastFailure=%v}",
		cb.state, cb.failures, cb.maxFailures,
		time.Since(cb.lastFailure).Round(time.Second))
}
