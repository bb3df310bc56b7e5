// Package whisper provides whisper.cpp-backed transcription engines: a
// native engine using the CGO bindings (the model runs in-process) and an
// HTTP engine talking to a whisper-server binary.
//
// The native engine requires the whisper.cpp static library (libwhisper.a)
// and headers at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

// NativeEngine implements stt.Engine using the whisper.cpp Go bindings.
// The model is loaded once at construction and shared across calls; each
// Transcribe creates its own whisper context, so concurrent calls are safe.
type NativeEngine struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g. "en", "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// NewNative loads the whisper.cpp model from modelPath. The caller must call
// Close when the engine is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &NativeEngine{model: model, language: "en"}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name implements stt.Engine.
func (e *NativeEngine) Name() string { return "whisper-native" }

// Class implements stt.Engine. The model runs in-process.
func (e *NativeEngine) Class() stt.Class { return stt.ClassLocal }

// Transcribe runs whisper.cpp inference over the utterance and returns the
// concatenated segment text. The bindings do not support mid-inference
// cancellation; ctx is checked before the (potentially long) Process call.
func (e *NativeEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}
	// whisper.cpp expects 16 kHz mono input; adapt other rates.
	if sampleRate != whisperlib.SampleRate {
		if sampleRate <= 0 {
			return "", fmt.Errorf("whisper: invalid sample rate %d", sampleRate)
		}
		samples = audio.ResampleAveraging(samples, sampleRate, whisperlib.SampleRate)
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", e.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the whisper model.
func (e *NativeEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
