// Package breaker guards audit fan-out against an unhealthy broker.
// While open, change sets are dropped without attempting delivery so a
// broker outage costs nothing on the request path.
package breaker

import (
	"sync"
	"time"
)

const (
	defaultThreshold = 5
	defaultCooldown  = time.Minute
)

// Breaker is a consecutive-failure circuit breaker with a fixed cooldown.
type Breaker struct {
	mu sync.Mutex

	name      string
	threshold int           // failures to trigger open
	cooldown  time.Duration // how long to stay open
	now       func() time.Time

	failures  int       // consecutive failures
	openUntil time.Time // when to transition from open to half-open
	isOpen    bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets the consecutive failures needed to open.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a closed breaker.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the guarded dependency in logs.
func (b *Breaker) Name() string { return b.name }

// Allow returns true if the circuit is closed or the cooldown has expired.
// After the cooldown the failure count restarts, so the first attempt acts
// as the half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isOpen {
		return true
	}
	if b.now().After(b.openUntil) {
		b.isOpen = false
		b.failures = b.threshold - 1
		return true
	}
	return false
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.isOpen = false
}

// RecordFailure counts a failure and reports whether the circuit is now open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.isOpen = true
		b.openUntil = b.now().Add(b.cooldown)
	}
	return b.isOpen
}

// IsOpen returns true if the circuit is currently open.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen
}
