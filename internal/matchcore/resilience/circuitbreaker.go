// Package resilience provides the three composable wrappers every external
// call in matchcore goes through: CircuitBreaker, Retry and Timeout.
package resilience

import (
	"sync"
	"time"

	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
)

// BreakerState is a circuit breaker's state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "halfOpen"
)

// CircuitBreaker guards one external dependency. Zero value is not usable;
// construct with NewCircuitBreaker.
type CircuitBreaker struct {
	name            string
	threshold       int
	timeout         time.Duration
	successesNeeded int

	mu             sync.Mutex
	state          BreakerState
	failureCount   int
	lastFailureAt  time.Time
	successesSeen  int
}

// NewCircuitBreaker builds a breaker named after the dependency it guards.
// Defaults: threshold=5, timeout=30s, successesNeeded=2.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, successesNeeded int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if successesNeeded <= 0 {
		successesNeeded = 2
	}
	return &CircuitBreaker{
		name:            name,
		threshold:       threshold,
		timeout:         timeout,
		successesNeeded: successesNeeded,
		state:           StateClosed,
	}
}

// State reports the breaker's current state, first applying the
// open-to-halfOpen transition if its timeout has elapsed.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionToHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybeTransitionToHalfOpenLocked() {
	if b.state == StateOpen && time.Since(b.lastFailureAt) > b.timeout {
		b.state = StateHalfOpen
		b.successesSeen = 0
	}
}

// Allow reports whether a call may proceed, returning a non-nil error when
// the breaker is open.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeTransitionToHalfOpenLocked()
	if b.state == StateOpen {
		remaining := b.timeout - time.Since(b.lastFailureAt)
		if remaining < 0 {
			remaining = 0
		}
		return matcherr.CircuitOpen(b.name, remaining)
	}
	return nil
}

// OnSuccess records a successful call.
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successesSeen++
		if b.successesSeen >= b.successesNeeded {
			b.state = StateClosed
			b.failureCount = 0
			b.successesSeen = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// OnFailure records a failed call, possibly opening the breaker.
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.threshold {
			b.state = StateOpen
		}
	}
}

// Execute runs fn guarded by the breaker: rejects immediately while open,
// otherwise runs fn and records the outcome.
func Execute[T any](b *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}

	result, err := fn()
	if err != nil {
		b.OnFailure()
		return zero, err
	}

	b.OnSuccess()
	return result, nil
}
