package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for two tokens to be
// considered equal. Tokens shorter than fuzzyMinLen must match exactly, since
// short tokens reach high similarity scores too easily.
const (
	fuzzyThreshold = 0.92
	fuzzyMinLen    = 4

	// maxChunkChars caps chunk size; oversized paragraphs are split on
	// sentence-ish boundaries.
	maxChunkChars = 800
)

// Ensure KeywordCorpus implements Corpus at compile time.
var _ Corpus = (*KeywordCorpus)(nil)

// KeywordCorpus is an in-memory corpus ranked by fuzzy token overlap. It
// needs no embedding provider or database, which makes it the default when
// retrieval storage is not configured. Transcripts contain recognition
// errors, so token comparison tolerates small edit distances via
// Jaro-Winkler similarity.
type KeywordCorpus struct {
	mu     sync.RWMutex
	chunks []indexedChunk
}

type indexedChunk struct {
	source string
	text   string
	tokens []string
}

// NewKeywordCorpus creates an empty corpus.
func NewKeywordCorpus() *KeywordCorpus {
	return &KeywordCorpus{}
}

// LoadDocuments implements Corpus. Documents from sources already present
// are replaced.
func (c *KeywordCorpus) LoadDocuments(ctx context.Context, docs []Document) error {
	replaced := make(map[string]bool, len(docs))
	for _, d := range docs {
		replaced[d.Source] = true
	}

	var fresh []indexedChunk
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, text := range SplitChunks(d.Text) {
			fresh = append(fresh, indexedChunk{
				source: d.Source,
				text:   text,
				tokens: tokenize(text),
			})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.chunks[:0:0]
	for _, ch := range c.chunks {
		if !replaced[ch.source] {
			kept = append(kept, ch)
		}
	}
	c.chunks = append(kept, fresh...)
	return nil
}

// RelevantContext implements Corpus. Chunks are scored by the fraction of
// query tokens they contain (fuzzy-matched), damped by chunk length so a
// huge chunk does not win on raw token count alone.
func (c *KeywordCorpus) RelevantContext(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || topK <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []Snippet
	for _, ch := range c.chunks {
		score := overlapScore(queryTokens, ch.tokens)
		if score <= 0 {
			continue
		}
		results = append(results, Snippet{Source: ch.source, Text: ch.text, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// overlapScore counts query tokens present in the chunk and normalises by
// query length and the log of chunk length.
func overlapScore(query, chunk []string) float64 {
	if len(chunk) == 0 {
		return 0
	}
	matched := 0
	for _, qt := range query {
		for _, ct := range chunk {
			if tokensEqual(qt, ct) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(query)) / math.Log(math.E+float64(len(chunk)))
}

// tokensEqual compares tokens with fuzzy equality for longer tokens.
func tokensEqual(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < fuzzyMinLen || len(b) < fuzzyMinLen {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= fuzzyThreshold
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-rune tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// SplitChunks splits a document into retrieval-sized chunks: blank-line
// paragraphs, with oversized paragraphs further split on sentence
// boundaries. Exported so corpus implementations share one chunking policy.
func SplitChunks(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkChars {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitLong(para)...)
	}
	return chunks
}

// splitLong greedily packs sentences into chunks of at most maxChunkChars.
func splitLong(para string) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	for _, sentence := range splitSentences(para) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxChunkChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
