// Package mock provides a scripted test double for the stt.Engine interface.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
)

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// SampleCount is len(samples) for the call.
	SampleCount int

	// SampleRate is the rate passed to Transcribe.
	SampleRate int
}

// Engine is a mock stt.Engine.
type Engine struct {
	mu sync.Mutex

	// EngineName is returned by Name. Defaults to "mock".
	EngineName string

	// EngineClass is returned by Class.
	EngineClass stt.Class

	// Text is returned by Transcribe when Err is nil.
	Text string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Delay makes Transcribe sleep before returning, honouring ctx. Use it
	// to simulate a slow or timing-out engine.
	Delay time.Duration

	// IgnoreCtx makes Delay sleep through context cancellation, simulating a
	// backend that cannot be aborted (late result discard tests).
	IgnoreCtx bool

	// TranscribeCalls records every call in order.
	TranscribeCalls []TranscribeCall
}

// Name returns EngineName.
func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "mock"
	}
	return e.EngineName
}

// Class returns EngineClass.
func (e *Engine) Class() stt.Class { return e.EngineClass }

// Transcribe records the call, waits Delay, and returns Text, Err.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	e.mu.Lock()
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{
		SampleCount: len(samples),
		SampleRate:  sampleRate,
	})
	delay := e.Delay
	ignoreCtx := e.IgnoreCtx
	text, err := e.Text, e.Err
	e.mu.Unlock()

	if delay > 0 {
		if ignoreCtx {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return text, err
}

// Calls returns a snapshot of the recorded Transcribe calls.
func (e *Engine) Calls() []TranscribeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscribeCall, len(e.TranscribeCalls))
	copy(out, e.TranscribeCalls)
	return out
}
