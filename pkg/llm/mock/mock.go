// Package mock provides a scripted test double for the llm.Provider interface.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/llm"
)

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	Model        string
	SystemPrompt string
	Prompt       string
}

// Provider is a mock llm.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// SupportedPrefix, when non-empty, makes Supports return true only for
	// model names starting with it. Empty means supports everything.
	SupportedPrefix string

	// Responses are returned by Generate in order; the last one repeats.
	// When empty, Generate returns "".
	Responses []string

	// Err, if non-nil, is returned by every Generate call.
	Err error

	// Delay makes Generate sleep before returning, honouring ctx.
	Delay time.Duration

	// GenerateCalls records every call in order.
	GenerateCalls []GenerateCall

	next int
}

// Name returns ProviderName.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Supports checks SupportedPrefix.
func (p *Provider) Supports(model string) bool {
	if p.SupportedPrefix == "" {
		return true
	}
	return len(model) >= len(p.SupportedPrefix) && model[:len(p.SupportedPrefix)] == p.SupportedPrefix
}

// Generate records the call and returns the next scripted response.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.Prompt,
	})
	delay := p.Delay
	err := p.Err
	var resp string
	if len(p.Responses) > 0 {
		idx := p.next
		if idx >= len(p.Responses) {
			idx = len(p.Responses) - 1
		}
		resp = p.Responses[idx]
		p.next++
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Calls returns a snapshot of the recorded Generate calls.
func (p *Provider) Calls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerateCall, len(p.GenerateCalls))
	copy(out, p.GenerateCalls)
	return out
}

// Reset clears recorded calls and response cursor.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.next = 0
}
