package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] fails, is skipped,
// or has an open breaker.
var ErrAllFailed = errors.New("all entries failed")

// ErrChainEmpty is returned by Run when the chain has no entries at all, or
// when a skip predicate filtered out every entry before any was attempted.
var ErrChainEmpty = errors.New("no eligible entries")

// chainEntry pairs a value with its dedicated breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain tries a sequence of same-typed backends in registration order until
// one succeeds. Each entry carries its own [Breaker] so a persistently
// failing backend is skipped without burning its timeout on every attempt.
//
// Chain is safe for concurrent use after all Add calls complete.
type Chain[T any] struct {
	entries []chainEntry[T]
	breaker BreakerConfig
}

// NewChain creates an empty chain. breaker configures the per-entry
// breakers; its Name field is overwritten per entry.
func NewChain[T any](breaker BreakerConfig) *Chain[T] {
	return &Chain[T]{breaker: breaker}
}

// Add appends an entry. Entries are tried in the order they were added.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.breaker
	cfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Len returns the number of registered entries.
func (c *Chain[T]) Len() int { return len(c.entries) }

// Run tries fn against each entry until one succeeds, returning the result
// of the first success.
//
// skip, when non-nil, is consulted before each attempt; a true return
// excludes the entry from this run without touching its breaker (used to
// filter by model support or liveness). Entries with open breakers are
// skipped the same way.
//
// When every entry fails, the returned error wraps [ErrAllFailed] and the
// last real failure. When no entry was even attempted it wraps
// [ErrChainEmpty] instead.
func Run[T, R any](ctx context.Context, c *Chain[T], skip func(name string, value T) bool, fn func(ctx context.Context, value T) (R, error)) (R, error) {
	var (
		zero      R
		lastErr   error
		attempted bool
	)
	for i := range c.entries {
		entry := &c.entries[i]
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if skip != nil && skip(entry.name, entry.value) {
			slog.Debug("chain entry skipped", "entry", entry.name)
			continue
		}

		var result R
		err := entry.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(ctx, entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("chain entry unavailable (breaker open)", "entry", entry.name)
			continue
		}
		attempted = true
		lastErr = err
		slog.Warn("chain entry failed, trying next", "entry", entry.name, "error", err)
	}

	if !attempted {
		return zero, ErrChainEmpty
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
