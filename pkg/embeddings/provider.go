// Package embeddings defines the Provider interface for vector embedding
// backends. The retrieval corpus uses embeddings to rank knowledge snippets
// against the live transcript when assembling suggestion prompts.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (Dimensions). Vectors from different providers or models
// must never be compared in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The
	// result has length Dimensions().
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a slice of texts in a single provider call. The
	// i-th result corresponds to texts[i]. On error no partial results are
	// returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length for this provider's model.
	Dimensions() int

	// ModelID returns the model identifier (e.g. "text-embedding-3-small").
	ModelID() string
}
