package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	Closed   State = iota // calls pass through
	Open                  // calls fail fast with ErrCircuitOpen
	HalfOpen              // one trial call decides
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Option customises a Breaker.
type Option func(*Breaker)

// WithFailureFilter limits which errors count towards opening the breaker.
// Errors rejected by fn are still returned to the caller.
func WithFailureFilter(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// WithStateChange registers a callback run, outside the lock, after every transition.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	maxFailures     int
	resetTimeout    time.Duration
	lastFailureTime time.Time

	isFailure func(error) bool
	onChange  func(from, to State)
}

// New creates a Breaker that opens after maxFailures consecutive errors
// and attempts recovery after resetTimeout.
func New(maxFailures int, resetTimeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		state:        Closed,
		maxFailures:  max(maxFailures, 1),
		resetTimeout: resetTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Execute runs fn through the circuit breaker. If the circuit is open,
// ErrCircuitOpen is returned without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		if time.Since(b.lastFailureTime) <= b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = HalfOpen
		b.mu.Unlock()
		b.notify(Open, HalfOpen)
	} else {
		b.mu.Unlock()
	}

	err := fn()

	b.mu.Lock()
	from := b.state
	switch {
	case err != nil && (b.isFailure == nil || b.isFailure(err)):
		b.failures++
		b.lastFailureTime = time.Now()
		if b.failures >= b.maxFailures || b.state == HalfOpen {
			b.state = Open
		}
	case err != nil:
		// a half-open probe that reached the backend closes the breaker
		if b.state == HalfOpen {
			b.failures = 0
			b.state = Closed
		}
	default:
		b.failures = 0
		b.state = Closed
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)

	return err
}

func (b *Breaker) notify(from, to State) {
	if b.onChange != nil && from != to {
		b.onChange(from, to)
	}
}

// GetState returns the current state of the breaker.
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
