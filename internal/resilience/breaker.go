// Package resilience provides the failure-handling primitives shared by the
// transcription and suggestion layers: a three-state circuit [Breaker] and an
// ordered failover [Chain] with a per-entry breaker.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// the cooldown has not yet elapsed.
var ErrBreakerOpen = errors.New("breaker open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerProbing admits a limited number of probe calls after the
	// cooldown. One success closes the breaker; one failure re-opens it.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields get defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// TripAfter is the number of consecutive failures that opens the
	// breaker. Default: 3.
	TripAfter int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeBudget caps concurrent-ish probe calls while probing.
	// Default: 1.
	ProbeBudget int
}

// Breaker is a three-state circuit breaker. Unlike a retry policy it carries
// memory across calls: a backend that keeps failing is cut off entirely for
// the cooldown period so failover reaches healthy entries without waiting on
// a dead one.
type Breaker struct {
	name        string
	tripAfter   int
	cooldown    time.Duration
	probeBudget int

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a closed [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 1
	}
	return &Breaker{
		name:        cfg.Name,
		tripAfter:   cfg.TripAfter,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
	}
}

// State returns the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// Do runs fn if the breaker admits the call, then records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, moving open→probing when the
// cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = BreakerProbing
		b.probes = 0
		slog.Debug("breaker probing", "name", b.name)
		fallthrough
	case BreakerProbing:
		if b.probes >= b.probeBudget {
			return ErrBreakerOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			slog.Info("breaker closed", "name", b.name)
		}
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	switch b.state {
	case BreakerProbing:
		// One failed probe re-opens immediately.
		b.state = BreakerOpen
		b.openedAt = time.Now()
		slog.Warn("breaker re-opened", "name", b.name)
	case BreakerClosed:
		b.failures++
		if b.failures >= b.tripAfter {
			b.state = BreakerOpen
			b.openedAt = time.Now()
			slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
		}
	}
}
