package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaProbe checks whether a local Ollama daemon is reachable and which
// models it has pulled. The suggestion router probes before attempting local
// generation so an absent daemon fails fast instead of burning the generation
// timeout.
type OllamaProbe struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProbe creates a probe against baseURL
// (e.g. "http://localhost:11434").
func NewOllamaProbe(baseURL string) *OllamaProbe {
	return &OllamaProbe{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// Available reports whether the Ollama daemon responds to /api/tags.
func (p *OllamaProbe) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of locally pulled models.
func (p *OllamaProbe) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("anyllm: build tags request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anyllm: list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anyllm: list models: unexpected status %s", resp.Status)
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anyllm: decode tags response: %w", err)
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether the daemon has the given model pulled. Tags carry
// a ":latest" suffix when no tag was requested, so a bare model name matches
// its ":latest" variant.
func (p *OllamaProbe) HasModel(ctx context.Context, model string) bool {
	names, err := p.ListModels(ctx)
	if err != nil {
		return false
	}
	want := strings.ToLower(model)
	for _, name := range names {
		lower := strings.ToLower(name)
		if lower == want || strings.TrimSuffix(lower, ":latest") == want {
			return true
		}
	}
	return false
}
