// Package stt defines the Engine interface for batch transcription backends.
//
// An engine wraps a speech-to-text service (a local whisper.cpp model, a
// whisper-server process, or a cloud streaming API) and exposes a uniform
// batch contract: one bounded utterance in, one transcript out. Engines are
// interchangeable; the orchestration layer tries them in a configured
// failover order under per-class timeouts.
//
// Implementations must be safe for concurrent use. A call that outlives its
// context deadline may keep running in the background — the caller discards
// the late result — so implementations should still honour ctx where the
// underlying transport allows it.
package stt

import "context"

// Class partitions engines by where the audio is processed. The
// transcription policy gates candidates by class (allowLocal/allowCloud) and
// assigns each class its own timeout budget.
type Class int

const (
	// ClassLocal marks engines that process audio on this machine.
	ClassLocal Class = iota

	// ClassCloud marks engines that ship audio to a remote service.
	ClassCloud
)

// String returns the policy-file spelling of the class.
func (c Class) String() string {
	if c == ClassCloud {
		return "cloud"
	}
	return "local"
}

// Engine is the abstraction over any transcription backend.
type Engine interface {
	// Name returns the engine's identifier as referenced in the failover
	// order (e.g. "whisper-native", "deepgram").
	Name() string

	// Class reports where the engine processes audio.
	Class() Class

	// Transcribe converts one utterance of mono float32 PCM into text.
	// An empty string with a nil error is a valid result (the engine heard
	// no words); callers must not treat it as a failure.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
