// Package vad segments the frame stream into speech and pauses. A frame
// counts as speech only when its energy, the classifier's top confidence,
// and the top label all agree; silence after speech closes the utterance via
// a dual trigger (accumulated silence duration or consecutive silent frame
// count, whichever is satisfied first).
package vad

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Savin-Alex/ai-consul-sub001/internal/observe"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/classifier"
)

// ErrInitFailed wraps a classifier initialization failure. After it occurs
// once, the segmenter permanently reports not-speech instead of retrying.
var ErrInitFailed = errors.New("vad: classifier initialization failed")

// Config tunes a [Segmenter].
type Config struct {
	// EnergyThreshold is the minimum peak amplitude for speech.
	EnergyThreshold float64

	// ConfidenceThreshold is the minimum top classifier score for speech.
	ConfidenceThreshold float64

	// MinSilence closes an utterance once this much silence accumulates
	// after speech.
	MinSilence time.Duration

	// DebounceFrames closes an utterance after this many consecutive
	// silent frames following speech.
	DebounceFrames int
}

// Result is the per-frame segmentation outcome.
type Result struct {
	// SpeechActive reports whether the frame was classified as speech.
	SpeechActive bool

	// PauseBoundary fires exactly once per utterance end.
	PauseBoundary bool
}

// Segmenter classifies frames and detects pause boundaries. Process must be
// called from a single goroutine (frames are strictly ordered); ensureReady
// may race from anywhere.
type Segmenter struct {
	cfg        Config
	classifier classifier.Classifier
	metrics    *observe.Metrics

	initGroup singleflight.Group
	initMu    sync.Mutex
	initDone  bool
	initErr   error

	speechActive    bool
	silenceDuration time.Duration
	silenceFrames   int
}

// New creates a segmenter over the given classifier. The classifier is
// initialized lazily on the first frame.
func New(cfg Config, cls classifier.Classifier, metrics *observe.Metrics) *Segmenter {
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = 0.01
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = 1200 * time.Millisecond
	}
	if cfg.DebounceFrames <= 0 {
		cfg.DebounceFrames = 10
	}
	return &Segmenter{cfg: cfg, classifier: cls, metrics: metrics}
}

// ensureReady initializes the classifier exactly once. Concurrent callers
// share a single in-flight initialization; a failure is recorded and every
// later call observes it without re-running Init.
func (s *Segmenter) ensureReady(ctx context.Context) error {
	s.initMu.Lock()
	if s.initDone {
		err := s.initErr
		s.initMu.Unlock()
		return err
	}
	s.initMu.Unlock()

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		err := s.classifier.Init(ctx)

		s.initMu.Lock()
		s.initDone = true
		if err != nil {
			s.initErr = errors.Join(ErrInitFailed, err)
		}
		s.initMu.Unlock()
		return nil, s.initErr
	})
	return err
}

// Process classifies one frame and updates the silence accumulators. A
// failed initialization or a per-frame classifier error degrades to
// not-speech rather than propagating.
func (s *Segmenter) Process(ctx context.Context, frame audio.Frame) Result {
	speech := s.classifyFrame(ctx, frame)

	if speech {
		s.speechActive = true
		s.silenceDuration = 0
		s.silenceFrames = 0
		return Result{SpeechActive: true}
	}

	if !s.speechActive {
		return Result{}
	}

	s.silenceDuration += time.Duration(frame.DurationMs() * float64(time.Millisecond))
	s.silenceFrames++

	if s.silenceDuration >= s.cfg.MinSilence || s.silenceFrames >= s.cfg.DebounceFrames {
		s.speechActive = false
		s.silenceDuration = 0
		s.silenceFrames = 0
		return Result{PauseBoundary: true}
	}
	return Result{}
}

// classifyFrame applies the three-way AND gate: energy, confidence, label.
func (s *Segmenter) classifyFrame(ctx context.Context, frame audio.Frame) bool {
	if len(frame.Samples) == 0 {
		return false
	}
	if err := s.ensureReady(ctx); err != nil {
		return false
	}

	energy := frame.PeakAmplitude()
	if float64(energy) < s.cfg.EnergyThreshold {
		return false
	}

	start := time.Now()
	preds, err := s.classifier.Classify(frame.Samples, frame.SampleRate)
	if s.metrics != nil && s.metrics.VADDuration != nil {
		s.metrics.VADDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		slog.Debug("vad: classifier error, treating frame as silence", "error", err)
		return false
	}

	top := classifier.Top(preds)
	return top.Score >= s.cfg.ConfidenceThreshold && top.Label != classifier.UnknownLabel
}
