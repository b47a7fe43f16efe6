// Package resilience provides circuit breaker and retry patterns for external service calls.
package resilience

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker is a consecutive-failure circuit breaker scoped to a single run.
// Once the failure count reaches the threshold it stays open for the rest
// of the run; a full success resets the count to zero while still closed.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int

	// OnOpen is called once, when the failure count reaches the threshold.
	OnOpen func(failures int)
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures. Threshold values below 1 fall back to 2.
func NewBreaker(threshold int) *Breaker {
	if threshold < 1 {
		threshold = 2
	}
	return &Breaker{threshold: threshold}
}

// Open reports whether the breaker has tripped.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold
}

// RecordFailure increments the consecutive failure count and returns the
// new count.
func (b *Breaker) RecordFailure() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures == b.threshold && b.OnOpen != nil {
		b.OnOpen(b.failures)
	}
	return b.failures
}

// RecordSuccess resets the consecutive failure count. A breaker that has
// already opened stays open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		b.failures = 0
	}
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
