package httpclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting the upstream while the
// provider's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling an upstream after Threshold consecutive failed
// requests. After SleepWindow one trial request is let through; its
// outcome closes or re-opens the circuit.
type Breaker struct {
	Threshold   int
	SleepWindow time.Duration

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	trialBusy bool
	now       func() time.Time
}

// NewBreaker returns a closed breaker that opens after threshold
// consecutive failures and stays open for sleepWindow.
func NewBreaker(threshold int, sleepWindow time.Duration) *Breaker {
	return &Breaker{Threshold: threshold, SleepWindow: sleepWindow, now: time.Now}
}

// Allow reports whether a request may proceed. A true result in the
// half-open state reserves the single trial slot; the caller must report
// the outcome with Record.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.SleepWindow {
			return false
		}
		b.state = BreakerHalfOpen
		b.trialBusy = true
		return true
	case BreakerHalfOpen:
		if b.trialBusy {
			return false
		}
		b.trialBusy = true
		return true
	default:
		return true
	}
}

// Record reports the outcome of an allowed request. Only upstream failures
// count; see countsAsFailure.
func (b *Breaker) Record(err error) {
	failed := countsAsFailure(err)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.trialBusy = false
		if failed {
			b.trip()
		} else {
			b.state = BreakerClosed
			b.failures = 0
		}
		return
	}

	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.Threshold > 0 && b.failures >= b.Threshold {
		b.trip()
	}
}

// State returns the current state. An open breaker whose sleep window has
// passed still reports open until the next Allow.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
}

// countsAsFailure excludes client errors and cancellations, which say
// nothing about the upstream's health.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
