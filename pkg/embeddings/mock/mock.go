// Package mock provides a deterministic test double for embeddings.Provider.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/embeddings"
)

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock embeddings.Provider. Unless Vectors scripts specific
// outputs, it derives a stable pseudo-vector from the input text so that
// identical texts embed identically across calls.
type Provider struct {
	mu sync.Mutex

	// Dim is the vector length. Defaults to 8.
	Dim int

	// Vectors maps exact input text to a scripted vector.
	Vectors map[string][]float32

	// Err, if non-nil, is returned by every Embed/EmbedBatch call.
	Err error

	// EmbedCalls records the texts passed to Embed and EmbedBatch, in order.
	EmbedCalls []string
}

func (p *Provider) dim() int {
	if p.Dim == 0 {
		return 8
	}
	return p.Dim
}

// Embed returns the scripted or derived vector for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	err := p.Err
	scripted, ok := p.Vectors[text]
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		return scripted, nil
	}
	return derive(text, p.dim()), nil
}

// EmbedBatch embeds each text via Embed.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns Dim.
func (p *Provider) Dimensions() int { return p.dim() }

// ModelID identifies the mock.
func (p *Provider) ModelID() string { return "mock-embeddings" }

// derive produces a stable pseudo-vector from the FNV hash of text.
func derive(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	out := make([]float32, dim)
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float32(int64(seed>>33)) / float32(1<<31)
	}
	return out
}
