package mediator

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/courier/result"
)

// CircuitState represents the breaker state.
type CircuitState int

const (
	// CircuitClosed means dispatches flow normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means dispatches fail fast without reaching
	// downstream.
	CircuitOpen
	// CircuitHalfOpen means one probe dispatch is allowed through.
	CircuitHalfOpen
)

// String returns the string representation of the state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerBehavior fails dispatches fast while a handler keeps
// failing. Failures are counted in a rolling window; crossing the
// threshold opens the circuit for the configured duration, after which
// a single probe decides between closing and reopening.
//
// One breaker guards one handler; the default assembly creates a fresh
// instance per registered kind.
type CircuitBreakerBehavior struct {
	threshold int
	duration  time.Duration

	mu       sync.Mutex
	state    CircuitState
	failures []time.Time
	openedAt time.Time
	probing  bool
}

// NewCircuitBreakerBehavior creates a breaker. threshold is the
// rolling failure count that opens the circuit; duration is both the
// rolling window and the open period before a probe.
func NewCircuitBreakerBehavior(threshold int, duration time.Duration) *CircuitBreakerBehavior {
	if threshold < 1 {
		threshold = 5
	}
	if duration <= 0 {
		duration = 30 * time.Second
	}
	return &CircuitBreakerBehavior{threshold: threshold, duration: duration}
}

func (b *CircuitBreakerBehavior) Name() string { return "circuitbreaker" }

// State returns the current breaker state.
func (b *CircuitBreakerBehavior) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked(time.Now())
}

// CircuitMetrics is a snapshot of breaker internals.
type CircuitMetrics struct {
	State          CircuitState
	WindowFailures int
	Threshold      int
}

// Metrics returns a consistent snapshot for observability surfaces.
func (b *CircuitBreakerBehavior) Metrics() CircuitMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentStateLocked(now)
	b.pruneLocked(now)
	return CircuitMetrics{
		State:          state,
		WindowFailures: len(b.failures),
		Threshold:      b.threshold,
	}
}

func (b *CircuitBreakerBehavior) Handle(ctx context.Context, pc *PipelineContext, msg Message, next Next) result.Result[any] {
	if res, ok := b.beforeDispatch(); !ok {
		return res
	}

	res := next(ctx)
	b.afterDispatch(res)
	return res
}

func (b *CircuitBreakerBehavior) beforeDispatch() (result.Result[any], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked(time.Now()) {
	case CircuitOpen:
		return result.Fail[any](result.CodeCircuitOpen, "circuit breaker is open"), false
	case CircuitHalfOpen:
		if b.probing {
			return result.Fail[any](result.CodeCircuitOpen, "circuit breaker is probing"), false
		}
		b.probing = true
	}

	return result.Result[any]{}, true
}

func (b *CircuitBreakerBehavior) afterDispatch(res result.Result[any]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	failed := b.countsAsFailure(res)

	switch b.state {
	case CircuitClosed:
		if !failed {
			return
		}
		b.failures = append(b.failures, now)
		b.pruneLocked(now)
		if len(b.failures) >= b.threshold {
			b.state = CircuitOpen
			b.openedAt = now
		}

	case CircuitHalfOpen:
		b.probing = false
		if failed {
			// Failed probe reopens for a full duration.
			b.state = CircuitOpen
			b.openedAt = now
			return
		}
		b.state = CircuitClosed
		b.failures = b.failures[:0]
	}
}

func (b *CircuitBreakerBehavior) currentStateLocked(now time.Time) CircuitState {
	if b.state == CircuitOpen && now.Sub(b.openedAt) >= b.duration {
		b.state = CircuitHalfOpen
		b.probing = false
	}
	return b.state
}

// pruneLocked drops failures that fell out of the rolling window.
func (b *CircuitBreakerBehavior) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.duration)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// countsAsFailure excludes cancellation: a caller giving up says
// nothing about the handler's health.
func (b *CircuitBreakerBehavior) countsAsFailure(res result.Result[any]) bool {
	f := res.Failure()
	return f != nil && f.Code != result.CodeCancelled
}
