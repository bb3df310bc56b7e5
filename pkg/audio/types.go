package audio

import "time"

// Frame is a fixed-duration slice of mono PCM audio flowing through the
// pipeline. Frames are the atomic unit of transport between the capture
// layer, the voice-activity segmenter, and the utterance buffer.
//
// A Frame is immutable once emitted: producers hand over ownership of the
// Samples slice and must not write to it afterwards.
type Frame struct {
	// Samples is normalised float32 PCM in the range [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz (16000 for the canonical pipeline rate).
	SampleRate int

	// Channels is the channel count. The pipeline operates on mono audio;
	// multi-channel sources are downmixed before framing.
	Channels int

	// Timestamp marks when the first sample of this frame was captured.
	Timestamp time.Time
}

// DurationMs returns the frame length in milliseconds.
func (f Frame) DurationMs() float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate) * 1000
}

// PeakAmplitude returns the maximum absolute sample value in the frame.
// Used by the segmenter as a cheap energy gate ahead of classification.
func (f Frame) PeakAmplitude() float64 {
	var peak float64
	for _, s := range f.Samples {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
