// Package utterance accumulates speech frames and hands complete utterances
// to the transcription sink under a single-flight discipline: at most one
// transcription is outstanding per session, while new speech keeps
// accumulating into the next utterance.
package utterance

import (
	"context"
	"sync"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
)

// FlushReason tags why an utterance was dispatched.
type FlushReason string

const (
	// FlushPause means a pause boundary closed the utterance.
	FlushPause FlushReason = "pause"

	// FlushCeiling means the hard duration ceiling forced dispatch.
	FlushCeiling FlushReason = "ceiling"
)

// Sink receives one complete utterance. It runs on a dispatch goroutine and
// may block for the full transcription duration.
type Sink func(ctx context.Context, samples []float32, sampleRate int)

// Config tunes a [Buffer].
type Config struct {
	// SampleRate is the canonical rate of incoming frames.
	SampleRate int

	// MaxDuration is the hard ceiling: once the accumulator reaches it, a
	// flush is forced even without a pause boundary.
	MaxDuration time.Duration
}

// Buffer is the utterance accumulator. Append/Observe calls must come from
// the single pipeline goroutine (frames are strictly ordered); completion of
// the sink re-arms dispatch from the sink goroutine, so internal state is
// mutex-guarded.
type Buffer struct {
	cfg        Config
	sink       Sink
	metrics    *observe.Metrics
	maxSamples int

	mu        sync.Mutex
	frames    [][]float32
	samples   int
	inFlight  bool
	discarded bool
}

// New creates a buffer dispatching to sink.
func New(cfg Config, sink Sink, metrics *observe.Metrics) *Buffer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 5500 * time.Millisecond
	}
	return &Buffer{
		cfg:        cfg,
		sink:       sink,
		metrics:    metrics,
		maxSamples: int(float64(cfg.SampleRate) * cfg.MaxDuration.Seconds()),
	}
}

// Observe feeds one frame plus its segmentation result. Speech frames are
// accumulated; a pause boundary (or hitting the duration ceiling) triggers a
// flush when no transcription is in flight.
func (b *Buffer) Observe(ctx context.Context, frame audio.Frame, speechActive, pauseBoundary bool) {
	b.mu.Lock()
	if b.discarded {
		b.mu.Unlock()
		return
	}

	if speechActive && len(frame.Samples) > 0 {
		owned := make([]float32, len(frame.Samples))
		copy(owned, frame.Samples)
		b.frames = append(b.frames, owned)
		b.samples += len(owned)
	}

	var (
		dispatch []float32
		reason   FlushReason
	)
	switch {
	case b.samples >= b.maxSamples && !b.inFlight:
		dispatch = b.takeLocked()
		reason = FlushCeiling
	case pauseBoundary && b.samples > 0 && !b.inFlight:
		dispatch = b.takeLocked()
		reason = FlushPause
	}
	if dispatch != nil {
		b.inFlight = true
	}
	b.mu.Unlock()

	if dispatch != nil {
		b.metrics.RecordFlush(ctx, string(reason))
		go b.run(ctx, dispatch)
	}
}

// run invokes the sink and re-arms dispatch on completion. If the ceiling
// was crossed while a call was outstanding, the deferred flush fires now.
func (b *Buffer) run(ctx context.Context, samples []float32) {
	b.sink(ctx, samples, b.cfg.SampleRate)

	b.mu.Lock()
	b.inFlight = false
	var next []float32
	if !b.discarded && b.samples >= b.maxSamples {
		next = b.takeLocked()
		b.inFlight = true
	}
	b.mu.Unlock()

	if next != nil {
		b.metrics.RecordFlush(ctx, string(FlushCeiling))
		go b.run(ctx, next)
	}
}

// takeLocked concatenates the accumulated frames into one contiguous slice
// and clears the accumulator. Caller holds b.mu.
func (b *Buffer) takeLocked() []float32 {
	out := make([]float32, 0, b.samples)
	for _, f := range b.frames {
		out = append(out, f...)
	}
	b.frames = nil
	b.samples = 0
	return out
}

// Pending reports the accumulated sample count awaiting dispatch.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

// InFlight reports whether a transcription is currently outstanding.
func (b *Buffer) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

// Discard clears the accumulator and blocks any further flush scheduling.
// An already-dispatched transcription completes and its downstream effects
// still apply.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discarded = true
	b.frames = nil
	b.samples = 0
}
