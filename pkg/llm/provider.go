// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, Gemini, or
// a local Ollama instance) and exposes a uniform single-turn completion
// contract for the suggestion pipeline. The pipeline owns prompt assembly and
// failover; providers just generate.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Request carries everything a provider needs to produce one completion.
type Request struct {
	// Model is the model identifier (e.g. "gpt-4o-mini",
	// "claude-3-5-haiku-latest", "llama3.2"). Providers that are bound to a
	// single model may ignore it.
	Model string

	// SystemPrompt is a high-priority instruction injected before the user
	// prompt. May be empty.
	SystemPrompt string

	// Prompt is the user-role content driving the response.
	Prompt string

	// Temperature controls output randomness. Zero requests the provider
	// default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Name returns the provider identifier as referenced in the failover
	// chain (e.g. "openai", "anthropic", "ollama").
	Name() string

	// Supports reports whether the provider can serve the given model name.
	// The failover chain uses it to skip providers that cannot handle the
	// requested model while preserving the configured order.
	Supports(model string) bool

	// Generate sends the request and returns the full response text.
	Generate(ctx context.Context, req Request) (string, error)
}
