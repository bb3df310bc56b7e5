// Package suggest generates response suggestions from live transcripts. The
// pipeline keeps a bounded conversation history, grounds prompts in retrieved
// reference snippets, and routes generation through an ordered provider
// failover chain with per-provider circuit breakers.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Savin-Alex/ai-consul-sub001/internal/config"
	"github.com/Savin-Alex/ai-consul-sub001/internal/resilience"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
)

// ErrGenerationExhausted is returned when every provider in the failover
// chain failed or was ineligible for one transcript. The session continues;
// only this round of suggestions is lost.
var ErrGenerationExhausted = errors.New("suggest: all providers exhausted")

// Generator produces one completion. [Router] is the production
// implementation.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Config tunes a [Pipeline].
type Config struct {
	// Model is the model identifier passed to providers.
	Model string

	// Mode selects the conversation-type prompt block.
	Mode config.SuggestionMode

	// Tone is a free-form style directive. May be empty.
	Tone string

	// CustomPrompt replaces the mode block when Mode is custom.
	CustomPrompt string

	// Temperature and MaxTokens pass through to the provider request. Zero
	// means provider default.
	Temperature float64
	MaxTokens   int

	// TopK is the number of retrieval snippets injected per prompt.
	TopK int

	// History tunes context compaction.
	History HistoryConfig
}

// Pipeline turns finalized transcripts into suggestions.
//
// OnTranscript is safe to call concurrently, though the transcription layer's
// single-flight discipline means calls arrive one at a time in practice.
type Pipeline struct {
	cfg       Config
	generator Generator
	corpus    retrieval.Corpus // nil disables retrieval grounding
	history   *History
}

// New creates a pipeline. corpus may be nil.
func New(cfg Config, generator Generator, corpus retrieval.Corpus) *Pipeline {
	if cfg.Mode == "" {
		cfg.Mode = config.SuggestMeeting
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Pipeline{
		cfg:       cfg,
		generator: generator,
		corpus:    corpus,
		history:   NewHistory(cfg.History),
	}
}

// History exposes the conversation history for inspection.
func (p *Pipeline) History() *History { return p.history }

// OnTranscript generates suggestions for one finalized transcript. Retrieval
// failures degrade to an ungrounded prompt; provider exhaustion returns
// [ErrGenerationExhausted]. Model output that parses to nothing yields an
// empty list with no error.
func (p *Pipeline) OnTranscript(ctx context.Context, transcript string) ([]Suggestion, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, nil
	}

	snippets := p.retrieve(ctx, transcript)
	recent := p.history.Window()

	req := llm.Request{
		Model:        p.cfg.Model,
		SystemPrompt: buildSystemPrompt(p.cfg.Mode, p.cfg.Tone, p.cfg.CustomPrompt),
		Prompt:       buildUserPrompt(transcript, snippets, recent),
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
	}

	raw, err := p.generator.Generate(ctx, req)
	// The utterance happened either way; keep it in context for later turns.
	p.history.Append(transcript, raw)
	if err != nil {
		if errors.Is(err, resilience.ErrAllFailed) || errors.Is(err, resilience.ErrChainEmpty) {
			return nil, fmt.Errorf("%w: %w", ErrGenerationExhausted, err)
		}
		return nil, fmt.Errorf("suggest: generate: %w", err)
	}

	suggestions := parseSuggestions(raw)
	if len(suggestions) == 0 {
		slog.Debug("model output parsed to no suggestions", "model", p.cfg.Model)
	}
	return suggestions, nil
}

func (p *Pipeline) retrieve(ctx context.Context, transcript string) []retrieval.Snippet {
	if p.corpus == nil {
		return nil
	}
	snippets, err := p.corpus.RelevantContext(ctx, transcript, p.cfg.TopK)
	if err != nil {
		slog.Warn("retrieval failed, prompting without background notes", "error", err)
		return nil
	}
	return snippets
}
