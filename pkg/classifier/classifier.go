// Package classifier defines the capability interface for frame-level speech
// classifiers.
//
// A classifier wraps an inference backend (a native model runtime, a hosted
// model client, or a deterministic stub for tests) and maps one audio frame
// to a set of label/score predictions. The voice-activity segmenter owns the
// classifier instance and drives its one-time initialization; see
// internal/vad.
//
// Implementations must be safe for concurrent use after Init has returned.
package classifier

import "context"

// UnknownLabel is the conventional label for the "no recognisable speech"
// class. The segmenter never treats a frame whose top prediction carries this
// label as speech, regardless of score.
const UnknownLabel = "unknown"

// Prediction is a single label/score pair produced by a classifier.
type Prediction struct {
	// Label is the class name (e.g. "speech", "music", "unknown").
	Label string

	// Score is the confidence in [0.0, 1.0].
	Score float64
}

// Classifier is the abstraction over any frame-level inference backend.
type Classifier interface {
	// Init loads the underlying model. It may be slow (model download,
	// runtime warm-up) and must respect ctx cancellation. Init is called at
	// most once per instance by the owning component; implementations do not
	// need to guard against concurrent calls.
	Init(ctx context.Context) error

	// Classify returns the predictions for one mono PCM frame, ordered or
	// unordered — callers select the highest-scoring entry. Returns an error
	// on malformed input or backend failure; per-frame errors are recoverable
	// and must not poison subsequent calls.
	Classify(samples []float32, sampleRate int) ([]Prediction, error)
}

// Top returns the highest-scoring prediction from preds, or a zero
// Prediction when preds is empty.
func Top(preds []Prediction) Prediction {
	var top Prediction
	for _, p := range preds {
		if p.Score > top.Score {
			top = p
		}
	}
	return top
}
