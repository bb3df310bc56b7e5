// Package deepgram provides a Deepgram-backed transcription engine using the
// streaming WebSocket API. Although Deepgram is a streaming service, the
// engine exposes the batch stt.Engine contract: one utterance is written as
// binary PCM messages, the stream is closed, and final results are collected
// until the server finishes.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkSamples is the number of samples per binary message (100 ms at
	// 16 kHz). Deepgram recommends 20–250 ms chunks.
	chunkSamples = 1600
)

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(e *Engine) { e.language = language }
}

// Engine implements stt.Engine backed by the Deepgram streaming API.
type Engine struct {
	apiKey   string
	model    string
	language string
}

// New creates a Deepgram engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name implements stt.Engine.
func (e *Engine) Name() string { return "deepgram" }

// Class implements stt.Engine. Audio is shipped to the Deepgram cloud.
func (e *Engine) Class() stt.Class { return stt.ClassCloud }

// response is the subset of the Deepgram streaming response we consume.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe opens a websocket session, streams the utterance, closes the
// stream, and concatenates the final transcripts the server emits.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wsURL, err := e.buildURL(sampleRate)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "utterance done")

	pcm := audio.Float32ToInt16(samples)
	chunkBytes := chunkSamples * 2
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return "", fmt.Errorf("deepgram: write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", fmt.Errorf("deepgram: close stream: %w", err)
	}

	var parts []string
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				break
			}
			// Deepgram closes the socket after the final result; EOF-style
			// errors after at least one transcript are a normal end.
			if len(parts) > 0 {
				break
			}
			return "", fmt.Errorf("deepgram: read: %w", err)
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Type == "Metadata" {
			// The summary message arrives after all results.
			break
		}
		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// buildURL constructs the streaming endpoint URL for one utterance.
func (e *Engine) buildURL(sampleRate int) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", e.model)
	q.Set("language", e.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
