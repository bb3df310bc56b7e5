// Package mock provides a deterministic test double for the classifier
// package.
package mock

import (
	"context"
	"sync"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/classifier"
)

// Ensure Classifier implements classifier.Classifier at compile time.
var _ classifier.Classifier = (*Classifier)(nil)

// ClassifyCall records a single invocation of Classify.
type ClassifyCall struct {
	// SampleCount is len(samples) for the call.
	SampleCount int

	// SampleRate is the rate passed to Classify.
	SampleRate int
}

// Classifier is a scripted classifier.Classifier implementation.
//
// Predictions are consumed one element per Classify call; when the script is
// exhausted the last element repeats. InitErr makes Init fail, InitDelay
// lets tests exercise concurrent initialization.
type Classifier struct {
	mu sync.Mutex

	// Predictions is the per-call script. Nil yields an empty prediction set.
	Predictions [][]classifier.Prediction

	// ClassifyErr, if non-nil, is returned by every Classify call.
	ClassifyErr error

	// InitErr, if non-nil, is returned by Init.
	InitErr error

	// InitBlock, if non-nil, is closed by the test to release a blocked Init.
	InitBlock chan struct{}

	// --- Call records ---

	InitCalls     int
	ClassifyCalls []ClassifyCall

	cursor int
}

// Init records the call, optionally blocks on InitBlock, and returns InitErr.
func (c *Classifier) Init(ctx context.Context) error {
	c.mu.Lock()
	c.InitCalls++
	block := c.InitBlock
	err := c.InitErr
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Classify records the call and returns the next scripted prediction set.
func (c *Classifier) Classify(samples []float32, sampleRate int) ([]classifier.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClassifyCalls = append(c.ClassifyCalls, ClassifyCall{
		SampleCount: len(samples),
		SampleRate:  sampleRate,
	})
	if c.ClassifyErr != nil {
		return nil, c.ClassifyErr
	}
	if len(c.Predictions) == 0 {
		return nil, nil
	}
	preds := c.Predictions[c.cursor]
	if c.cursor < len(c.Predictions)-1 {
		c.cursor++
	}
	return preds, nil
}
