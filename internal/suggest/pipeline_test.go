package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Savin-Alex/ai-consul-sub001/internal/config"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm"
	llmmock "github.com/Savin-Alex/ai-consul-sub001/pkg/llm/mock"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
)

func testPipelineConfig() Config {
	return Config{
		Model: "gpt-4o-mini",
		Mode:  config.SuggestInterview,
		Tone:  "concise and direct",
		TopK:  2,
	}
}

func routerFor(providers ...llm.Provider) *Router {
	r := NewRouter(testBreaker(), true, nil)
	for _, p := range providers {
		r.Add(p)
	}
	return r
}

func TestOnTranscriptReturnsParsedSuggestions(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{
		`[{"text": "I led the migration end to end.", "use_case": "ownership question"}]`,
	}}
	p := New(testPipelineConfig(), routerFor(provider), nil)

	got, err := p.OnTranscript(context.Background(), "Tell me about a project you led.")
	if err != nil {
		t.Fatalf("OnTranscript: %v", err)
	}
	if len(got) != 1 || got[0].Text != "I led the migration end to end." {
		t.Fatalf("suggestions = %+v", got)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	if calls[0].Model != "gpt-4o-mini" {
		t.Errorf("requested model %q", calls[0].Model)
	}
	if !strings.Contains(calls[0].SystemPrompt, "concise and direct") {
		t.Error("system prompt missing the tone directive")
	}
	if !strings.Contains(calls[0].SystemPrompt, "job interview") {
		t.Error("system prompt missing the interview mode block")
	}
	if !strings.Contains(calls[0].Prompt, "Tell me about a project you led.") {
		t.Error("user prompt missing the transcript")
	}
	if p.History().Len() != 1 {
		t.Errorf("history has %d exchanges, want 1", p.History().Len())
	}
}

func TestOnTranscriptGroundsPromptInCorpus(t *testing.T) {
	corpus := retrieval.NewKeywordCorpus()
	err := corpus.LoadDocuments(context.Background(), []retrieval.Document{
		{Source: "brief.md", Text: "The kubernetes migration finished in March and cut costs by 40 percent."},
	})
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	provider := &llmmock.Provider{Responses: []string{`["ok"]`}}
	p := New(testPipelineConfig(), routerFor(provider), corpus)

	if _, err := p.OnTranscript(context.Background(), "How did the kubernetes migration go?"); err != nil {
		t.Fatalf("OnTranscript: %v", err)
	}
	prompt := provider.Calls()[0].Prompt
	if !strings.Contains(prompt, "kubernetes migration finished in March") {
		t.Errorf("prompt missing the retrieved snippet:\n%s", prompt)
	}
	if !strings.Contains(prompt, "brief.md") {
		t.Error("prompt missing the snippet source")
	}
}

func TestOnTranscriptCarriesHistoryForward(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{`["first reply"]`, `["second reply"]`}}
	p := New(testPipelineConfig(), routerFor(provider), nil)
	ctx := context.Background()

	if _, err := p.OnTranscript(ctx, "What is your biggest strength?"); err != nil {
		t.Fatalf("first OnTranscript: %v", err)
	}
	if _, err := p.OnTranscript(ctx, "And your biggest weakness?"); err != nil {
		t.Fatalf("second OnTranscript: %v", err)
	}

	second := provider.Calls()[1].Prompt
	if !strings.Contains(second, "What is your biggest strength?") {
		t.Error("second prompt missing the first exchange")
	}
	if !strings.Contains(second, "first reply") {
		t.Error("second prompt missing the first response")
	}
}

func TestOnTranscriptExhaustionError(t *testing.T) {
	provider := &llmmock.Provider{Err: errors.New("quota exceeded")}
	p := New(testPipelineConfig(), routerFor(provider), nil)
	ctx := context.Background()

	_, err := p.OnTranscript(ctx, "What salary range are you expecting?")
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Errorf("got %v, want ErrGenerationExhausted", err)
	}
	// The utterance itself still becomes context for later turns.
	if p.History().Len() != 1 {
		t.Fatalf("history has %d exchanges after a failed turn, want 1", p.History().Len())
	}

	provider.Err = nil
	provider.Responses = []string{`["ok"]`}
	if _, err := p.OnTranscript(ctx, "Is that negotiable?"); err != nil {
		t.Fatalf("recovered OnTranscript: %v", err)
	}
	prompt := provider.Calls()[1].Prompt
	if !strings.Contains(prompt, "What salary range are you expecting?") {
		t.Error("prompt missing the failed turn's transcript")
	}
	if strings.Contains(prompt, "You suggested:") {
		t.Error("prompt claims a suggestion for the failed turn")
	}
}

func TestOnTranscriptUnparseableOutputIsNotAnError(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{"I cannot answer that."}}
	p := New(testPipelineConfig(), routerFor(provider), nil)

	got, err := p.OnTranscript(context.Background(), "anything")
	if err != nil {
		t.Fatalf("OnTranscript: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("suggestions = %+v, want empty", got)
	}
	if p.History().Len() != 1 {
		t.Error("exchange should still be recorded for context continuity")
	}
}

func TestOnTranscriptIgnoresBlankTranscript(t *testing.T) {
	provider := &llmmock.Provider{Responses: []string{`["never"]`}}
	p := New(testPipelineConfig(), routerFor(provider), nil)

	got, err := p.OnTranscript(context.Background(), "   ")
	if err != nil || got != nil {
		t.Fatalf("got (%+v, %v), want (nil, nil)", got, err)
	}
	if len(provider.Calls()) != 0 {
		t.Error("provider invoked for a blank transcript")
	}
}

func TestOnTranscriptCustomModeUsesCustomPrompt(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Mode = config.SuggestCustom
	cfg.CustomPrompt = "You are helping negotiate a lease."
	provider := &llmmock.Provider{Responses: []string{`["ok"]`}}
	p := New(cfg, routerFor(provider), nil)

	if _, err := p.OnTranscript(context.Background(), "The landlord wants a longer term."); err != nil {
		t.Fatalf("OnTranscript: %v", err)
	}
	sys := provider.Calls()[0].SystemPrompt
	if !strings.Contains(sys, "negotiate a lease") {
		t.Error("system prompt missing the custom block")
	}
	if strings.Contains(sys, "job interview") {
		t.Error("custom mode must not include a builtin mode block")
	}
}
