// Package postgres provides a PostgreSQL-backed retrieval corpus using
// pgvector for semantic similarity search. Documents are chunked, embedded
// via an embeddings.Provider, and stored in a snippets table; queries embed
// the transcript and rank by cosine distance.
//
// The pgvector extension must be available in the target database; the store
// installs it via CREATE EXTENSION IF NOT EXISTS on startup.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/embeddings"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
)

// Ensure Store implements retrieval.Corpus at compile time.
var _ retrieval.Corpus = (*Store)(nil)

// Store is a pgvector-backed retrieval corpus.
//
// All methods are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// New connects to the PostgreSQL database at dsn, registers pgvector types on
// every connection, and ensures the snippets schema exists. The embedding
// column dimension is taken from embedder.Dimensions(); changing embedding
// models over an existing table requires a manual schema change.
func New(ctx context.Context, dsn string, embedder embeddings.Provider) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("retrieval store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("retrieval store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("retrieval store: ping: %w", err)
	}

	s := &Store{pool: pool, embedder: embedder}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("retrieval store: migrate: %w", err)
	}
	return s, nil
}

// migrate ensures the extension, table, and ANN index exist.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS snippets (
			    id         BIGSERIAL    PRIMARY KEY,
			    source     TEXT         NOT NULL,
			    content    TEXT         NOT NULL,
			    embedding  VECTOR(%d)   NOT NULL,
			    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
			)`, s.embedder.Dimensions()),
		`CREATE INDEX IF NOT EXISTS idx_snippets_source ON snippets (source)`,
		`CREATE INDEX IF NOT EXISTS idx_snippets_embedding
		    ON snippets USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadDocuments implements retrieval.Corpus. Existing snippets from the same
// sources are deleted, then each document is chunked, batch-embedded, and
// inserted.
func (s *Store) LoadDocuments(ctx context.Context, docs []retrieval.Document) error {
	for _, doc := range docs {
		chunks := retrieval.SplitChunks(doc.Text)

		if _, err := s.pool.Exec(ctx, `DELETE FROM snippets WHERE source = $1`, doc.Source); err != nil {
			return fmt.Errorf("retrieval store: clear source %q: %w", doc.Source, err)
		}
		if len(chunks) == 0 {
			continue
		}

		vectors, err := s.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			return fmt.Errorf("retrieval store: embed source %q: %w", doc.Source, err)
		}

		batch := &pgx.Batch{}
		for i, chunk := range chunks {
			batch.Queue(
				`INSERT INTO snippets (source, content, embedding) VALUES ($1, $2, $3)`,
				doc.Source, chunk, pgvector.NewVector(vectors[i]),
			)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("retrieval store: insert source %q: %w", doc.Source, err)
		}
	}
	return nil
}

// RelevantContext implements retrieval.Corpus. The query is embedded and the
// topK nearest snippets by cosine distance are returned, most similar first.
// Score is 1 - distance so that higher means more relevant.
func (s *Store) RelevantContext(ctx context.Context, query string, topK int) ([]retrieval.Snippet, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval store: embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT source, content, embedding <=> $1 AS distance
		FROM   snippets
		ORDER  BY distance
		LIMIT  $2`, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (retrieval.Snippet, error) {
		var (
			sn       retrieval.Snippet
			distance float64
		)
		if err := row.Scan(&sn.Source, &sn.Text, &distance); err != nil {
			return retrieval.Snippet{}, err
		}
		sn.Score = 1 - distance
		return sn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval store: scan rows: %w", err)
	}
	return results, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
