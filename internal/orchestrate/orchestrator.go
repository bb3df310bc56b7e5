// Package orchestrate routes utterances through the configured transcription
// engines. A policy filters the failover order by engine class, each attempt
// races the engine against its class timeout, and the first success (even a
// valid empty one) wins.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
)

// ErrNoEngines is returned when the policy filters out every configured
// engine before any attempt is made.
var ErrNoEngines = errors.New("orchestrate: no engine available under current policy")

// ErrTimeout marks an attempt that exceeded its class budget. It is an
// ordinary failover cause, never fatal on its own.
var ErrTimeout = errors.New("orchestrate: engine timed out")

// ExhaustedError is returned when every candidate engine failed or timed
// out for one utterance. The session continues; only this utterance is lost.
type ExhaustedError struct {
	// Attempts records each failed engine in order.
	Attempts []Attempt

	// Last is the final error observed.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("orchestrate: all %d engines exhausted: %v", len(e.Attempts), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Attempt is the record of one failed engine attempt.
type Attempt struct {
	Engine  string
	Err     error
	Elapsed time.Duration
}

// Entry pairs an engine with its per-minute cost for the cost ceiling.
type Entry struct {
	Engine        stt.Engine
	CostPerMinute float64
}

// Policy is the transcription routing policy, frozen for a session.
type Policy struct {
	AllowLocal   bool
	AllowCloud   bool
	LocalTimeout time.Duration
	CloudTimeout time.Duration

	// CostLimit is the session spend ceiling in USD. Zero means unlimited.
	CostLimit float64
}

func (p Policy) allows(c stt.Class) bool {
	if c == stt.ClassCloud {
		return p.AllowCloud
	}
	return p.AllowLocal
}

func (p Policy) timeout(c stt.Class) time.Duration {
	if c == stt.ClassCloud {
		if p.CloudTimeout > 0 {
			return p.CloudTimeout
		}
		return 15 * time.Second
	}
	if p.LocalTimeout > 0 {
		return p.LocalTimeout
	}
	return 10 * time.Second
}

// Orchestrator tries engines in failover order. Safe for concurrent use,
// though the utterance buffer's single-flight discipline means one call at a
// time in practice.
type Orchestrator struct {
	policy  Policy
	entries []Entry
	metrics *observe.Metrics

	mu    sync.Mutex
	spent float64 // accumulated estimated cloud cost, USD
}

// New creates an orchestrator over the ordered engine entries.
func New(policy Policy, entries []Entry, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{policy: policy, entries: entries, metrics: metrics}
}

// Spent returns the accumulated estimated cost so far.
func (o *Orchestrator) Spent() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spent
}

// Transcribe runs the failover loop for one utterance. The first successful
// engine result is returned — including a valid empty transcript, which does
// not fall through to the next engine.
func (o *Orchestrator) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	minutes := float64(len(samples)) / float64(sampleRate) / 60

	var attempts []Attempt
	attempted := false

	for _, entry := range o.entries {
		eng := entry.Engine
		if !o.policy.allows(eng.Class()) {
			continue
		}
		if skip := o.overBudget(entry, minutes); skip {
			slog.Info("skipping engine over cost ceiling",
				"engine", eng.Name(), "limit", o.policy.CostLimit)
			attempts = append(attempts, Attempt{Engine: eng.Name(), Err: errors.New("cost ceiling reached")})
			continue
		}
		attempted = true

		start := time.Now()
		text, err := o.attempt(ctx, eng, samples, sampleRate)
		elapsed := time.Since(start)

		if err == nil {
			o.charge(entry, minutes)
			o.metrics.RecordEngineAttempt(ctx, eng.Name(), "ok", elapsed.Seconds())
			return strings.TrimSpace(text), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		status := "error"
		if errors.Is(err, ErrTimeout) {
			status = "timeout"
		}
		o.metrics.RecordEngineAttempt(ctx, eng.Name(), status, elapsed.Seconds())
		slog.Warn("engine failed, trying next", "engine", eng.Name(), "error", err)
		attempts = append(attempts, Attempt{Engine: eng.Name(), Err: err, Elapsed: elapsed})
	}

	if !attempted {
		return "", ErrNoEngines
	}
	last := attempts[len(attempts)-1].Err
	return "", &ExhaustedError{Attempts: attempts, Last: last}
}

// attempt races one engine call against its class timeout. A call that
// outlives the timeout keeps running in the background; its late result is
// discarded exactly once and can never overwrite the value already returned.
func (o *Orchestrator) attempt(ctx context.Context, eng stt.Engine, samples []float32, sampleRate int) (string, error) {
	budget := o.policy.timeout(eng.Class())
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	resultCh := make(chan outcome, 1)
	var once sync.Once

	go func() {
		text, err := eng.Transcribe(attemptCtx, samples, sampleRate)
		once.Do(func() { resultCh <- outcome{text, err} })
		// A second resolution path already won; the late result is dropped.
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res.text, res.err
	case <-timer.C:
		once.Do(func() { resultCh <- outcome{} }) // seal the channel slot
		slog.Debug("engine attempt timed out", "engine", eng.Name(), "budget", budget)
		return "", fmt.Errorf("%w after %v", ErrTimeout, budget)
	case <-ctx.Done():
		once.Do(func() { resultCh <- outcome{} })
		return "", ctx.Err()
	}
}

// overBudget reports whether attempting this entry would cross the cost
// ceiling.
func (o *Orchestrator) overBudget(entry Entry, minutes float64) bool {
	if o.policy.CostLimit <= 0 || entry.CostPerMinute <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spent+entry.CostPerMinute*minutes > o.policy.CostLimit
}

func (o *Orchestrator) charge(entry Entry, minutes float64) {
	if entry.CostPerMinute <= 0 {
		return
	}
	o.mu.Lock()
	o.spent += entry.CostPerMinute * minutes
	o.mu.Unlock()
}
