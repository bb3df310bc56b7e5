package classifier

import (
	"context"
	"errors"
	"math"
)

// defaultReference is the RMS level mapped to full confidence. Conversational
// speech at a sane input gain sits well above it.
const defaultReference = 0.05

// EnergyClassifier is a model-free fallback: it scores frames by RMS energy
// against a reference level. It exists so the pipeline runs end to end
// without a model runtime; a real inference-backed classifier should replace
// it wherever one is available.
type EnergyClassifier struct {
	reference float64
}

var _ Classifier = (*EnergyClassifier)(nil)

// NewEnergy creates an energy classifier. reference is the RMS level scored
// as 1.0; zero or negative selects the default.
func NewEnergy(reference float64) *EnergyClassifier {
	if reference <= 0 {
		reference = defaultReference
	}
	return &EnergyClassifier{reference: reference}
}

// Init is a no-op; there is no model to load.
func (c *EnergyClassifier) Init(_ context.Context) error { return nil }

// Classify scores the frame's RMS energy linearly against the reference,
// clamped to 1.0. The complement goes to the unknown class so the top
// prediction flips once energy crosses half the reference.
func (c *EnergyClassifier) Classify(samples []float32, sampleRate int) ([]Prediction, error) {
	if len(samples) == 0 {
		return nil, errors.New("classifier: empty frame")
	}
	if sampleRate <= 0 {
		return nil, errors.New("classifier: sample rate must be positive")
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	score := rms / c.reference
	if score > 1 {
		score = 1
	}
	return []Prediction{
		{Label: "speech", Score: score},
		{Label: UnknownLabel, Score: 1 - score},
	}, nil
}
