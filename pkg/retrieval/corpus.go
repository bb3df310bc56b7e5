// Package retrieval provides the knowledge corpus that grounds suggestion
// prompts. A corpus holds user-supplied reference documents (product notes,
// interview briefs, meeting agendas) and returns the snippets most relevant
// to the live transcript.
package retrieval

import "context"

// Document is one reference text loaded into a corpus.
type Document struct {
	// Source identifies where the document came from (a file name, URL, or
	// user-assigned label). Carried through to retrieved snippets.
	Source string

	// Text is the full document body. Corpora chunk it internally.
	Text string
}

// Snippet is one retrieved chunk with its relevance score. Higher scores are
// more relevant; scores are only comparable within a single query.
type Snippet struct {
	Source string
	Text   string
	Score  float64
}

// Corpus is the abstraction over snippet storage and retrieval.
//
// Implementations must be safe for concurrent use: RelevantContext is called
// from the suggestion pipeline while LoadDocuments may run in the background.
type Corpus interface {
	// LoadDocuments chunks and indexes the documents, replacing any previous
	// content from the same sources.
	LoadDocuments(ctx context.Context, docs []Document) error

	// RelevantContext returns up to topK snippets ranked by relevance to
	// query. An empty result is not an error.
	RelevantContext(ctx context.Context, query string, topK int) ([]Snippet, error)
}
