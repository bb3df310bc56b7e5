// Package capture turns irregular hardware capture callbacks into a steady
// stream of fixed-duration frames at the pipeline's canonical sample rate.
//
// The capture callback side ([Producer.Push]) never blocks: chunks are handed
// to the producer goroutine over a bounded queue and dropped (with a counter
// and metric) when the queue is full. Resampling, framing, and flushing all
// happen on the producer goroutine, so no real-time thread ever waits on the
// pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
)

// queueDepth bounds chunks waiting for the producer goroutine. At typical
// 10ms hardware callbacks this is over half a second of headroom.
const queueDepth = 64

// ErrClosed is reported when Push or Flush is called after Close.
var ErrClosed = errors.New("capture: producer closed")

// Config tunes a [Producer].
type Config struct {
	// SourceRate is the hardware sample rate of pushed chunks.
	SourceRate int

	// TargetRate is the canonical pipeline rate frames are emitted at.
	TargetRate int

	// FrameDuration is the fixed emitted frame length (20–500 ms).
	FrameDuration time.Duration

	// MaxBuffer caps accumulated un-framed audio; reaching it forces a
	// partial-frame flush so memory stays bounded.
	MaxBuffer time.Duration
}

func (c Config) validate() error {
	if c.SourceRate <= 0 || c.TargetRate <= 0 {
		return fmt.Errorf("capture: sample rates must be positive (source %d, target %d)", c.SourceRate, c.TargetRate)
	}
	if c.FrameDuration < 20*time.Millisecond || c.FrameDuration > 500*time.Millisecond {
		return fmt.Errorf("capture: frame duration %v out of range [20ms, 500ms]", c.FrameDuration)
	}
	if c.MaxBuffer < c.FrameDuration {
		return fmt.Errorf("capture: max buffer %v shorter than one frame %v", c.MaxBuffer, c.FrameDuration)
	}
	return nil
}

// Producer accumulates pushed chunks into fixed frames. Create with [New],
// then read [Producer.Frames] until it closes.
type Producer struct {
	cfg          Config
	frameSamples int
	maxSamples   int

	in     chan []float32
	flush  chan chan struct{}
	frames chan audio.Frame
	errs   chan error

	dropped atomic.Uint64
	metrics *observe.Metrics

	closeOnce sync.Once
	done      chan struct{}
	loopDone  chan struct{}
}

// New validates cfg and starts the producer goroutine.
func New(cfg Config, metrics *observe.Metrics) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Producer{
		cfg:          cfg,
		frameSamples: int(float64(cfg.TargetRate) * cfg.FrameDuration.Seconds()),
		maxSamples:   int(float64(cfg.TargetRate) * cfg.MaxBuffer.Seconds()),
		in:           make(chan []float32, queueDepth),
		flush:        make(chan chan struct{}),
		frames:       make(chan audio.Frame, 16),
		errs:         make(chan error, 8),
		metrics:      metrics,
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

// Push hands one source-rate chunk to the producer. It never blocks: when
// the queue is full the chunk is dropped and counted. Safe to call from a
// capture callback.
func (p *Producer) Push(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	// The callback may reuse its buffer; copy before crossing goroutines.
	owned := make([]float32, len(chunk))
	copy(owned, chunk)

	select {
	case <-p.done:
		p.reportErr(ErrClosed)
		return
	default:
	}

	select {
	case p.in <- owned:
	default:
		p.dropped.Add(1)
		if p.metrics != nil && p.metrics.FramesDropped != nil {
			p.metrics.FramesDropped.Add(context.Background(), 1)
		}
	}
}

// Frames returns the emitted frame stream. Closed by [Producer.Close].
func (p *Producer) Frames() <-chan audio.Frame { return p.frames }

// Errors returns the side channel for errors crossing the producer boundary.
// Errors are dropped, not blocked on, when nobody is reading.
func (p *Producer) Errors() <-chan error { return p.errs }

// Dropped returns the number of chunks discarded under backpressure.
func (p *Producer) Dropped() uint64 { return p.dropped.Load() }

// Flush drains queued chunks, resampler residue, and any sub-frame remainder
// as a final short frame, then returns. Returns ErrClosed after Close.
func (p *Producer) Flush() error {
	ack := make(chan struct{})
	select {
	case <-p.done:
		return ErrClosed
	case p.flush <- ack:
	}
	select {
	case <-ack:
		return nil
	case <-p.loopDone:
		return ErrClosed
	}
}

// Close stops the producer goroutine and closes Frames. Idempotent.
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.loopDone
	})
}

func (p *Producer) loop() {
	defer close(p.loopDone)
	defer close(p.frames)

	res := newStreamResampler(p.cfg.SourceRate, p.cfg.TargetRate)
	var acc []float32

	emit := func(samples []float32) {
		frame := audio.Frame{
			Samples:    samples,
			SampleRate: p.cfg.TargetRate,
			Channels:   1,
			Timestamp:  time.Now(),
		}
		select {
		case p.frames <- frame:
		case <-p.done:
		}
	}

	ingest := func(chunk []float32) {
		acc = append(acc, res.process(chunk)...)
		for len(acc) >= p.frameSamples {
			frame := make([]float32, p.frameSamples)
			copy(frame, acc)
			acc = append(acc[:0:0], acc[p.frameSamples:]...)
			emit(frame)
		}
		// Accumulation cap: ship what we have rather than growing without
		// bound. Only reachable with frame sizes near the cap.
		if len(acc) >= p.maxSamples {
			partial := append([]float32(nil), acc...)
			acc = acc[:0]
			emit(partial)
		}
	}

	drainQueue := func() {
		for {
			select {
			case chunk := <-p.in:
				ingest(chunk)
			default:
				return
			}
		}
	}

	for {
		select {
		case chunk := <-p.in:
			ingest(chunk)

		case ack := <-p.flush:
			drainQueue()
			if tail := res.drain(); len(tail) > 0 {
				acc = append(acc, tail...)
			}
			for len(acc) >= p.frameSamples {
				frame := make([]float32, p.frameSamples)
				copy(frame, acc)
				acc = append(acc[:0:0], acc[p.frameSamples:]...)
				emit(frame)
			}
			if len(acc) > 0 {
				partial := append([]float32(nil), acc...)
				acc = acc[:0]
				emit(partial)
			}
			close(ack)

		case <-p.done:
			return
		}
	}
}

func (p *Producer) reportErr(err error) {
	select {
	case p.errs <- err:
	default:
	}
}
