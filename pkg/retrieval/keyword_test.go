package retrieval

import (
	"context"
	"strings"
	"testing"
)

func TestKeywordCorpusRanksByOverlap(t *testing.T) {
	c := NewKeywordCorpus()
	err := c.LoadDocuments(context.Background(), []Document{
		{Source: "pricing.md", Text: "Enterprise pricing starts at $500 per month with volume discounts.\n\nThe starter plan is free for up to three seats."},
		{Source: "roadmap.md", Text: "The mobile app ships in the fourth quarter."},
	})
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	snips, err := c.RelevantContext(context.Background(), "what does enterprise pricing cost", 2)
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if len(snips) == 0 {
		t.Fatal("expected at least one snippet")
	}
	if snips[0].Source != "pricing.md" {
		t.Errorf("top snippet source = %q, want pricing.md", snips[0].Source)
	}
	if !strings.Contains(snips[0].Text, "Enterprise pricing") {
		t.Errorf("top snippet text = %q, want the enterprise pricing paragraph", snips[0].Text)
	}
}

func TestKeywordCorpusFuzzyTokenMatch(t *testing.T) {
	c := NewKeywordCorpus()
	if err := c.LoadDocuments(context.Background(), []Document{
		{Source: "brief.md", Text: "Kubernetes deployment requires a configured ingress controller."},
	}); err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	// Transcribed speech often mangles terms slightly.
	snips, err := c.RelevantContext(context.Background(), "kubernetess deployments", 1)
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if len(snips) != 1 {
		t.Fatalf("got %d snippets, want 1 (fuzzy match should tolerate small typos)", len(snips))
	}
}

func TestKeywordCorpusReplacesSource(t *testing.T) {
	ctx := context.Background()
	c := NewKeywordCorpus()
	if err := c.LoadDocuments(ctx, []Document{{Source: "a", Text: "old content about databases"}}); err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}
	if err := c.LoadDocuments(ctx, []Document{{Source: "a", Text: "new content about caching"}}); err != nil {
		t.Fatalf("LoadDocuments (reload): %v", err)
	}

	snips, err := c.RelevantContext(ctx, "databases", 5)
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if len(snips) != 0 {
		t.Errorf("got %d snippets for replaced content, want 0", len(snips))
	}
}

func TestKeywordCorpusEmptyQuery(t *testing.T) {
	c := NewKeywordCorpus()
	snips, err := c.RelevantContext(context.Background(), "  ", 3)
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if snips != nil {
		t.Errorf("got %v, want nil for an empty query", snips)
	}
}

func TestSplitChunksParagraphsAndLongText(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	chunks := SplitChunks(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	long := strings.Repeat("This sentence pads the paragraph well past the limit. ", 40)
	chunks = SplitChunks(long)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks for oversized paragraph, want at least 2", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch) > maxChunkChars {
			t.Errorf("chunk %d has %d chars, exceeds cap %d", i, len(ch), maxChunkChars)
		}
	}
}
