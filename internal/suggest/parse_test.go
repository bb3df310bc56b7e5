package suggest

import (
	"testing"
)

func TestParseJSONObjectArray(t *testing.T) {
	raw := `Here are some options:
[
  {"text": "Could you walk me through the timeline?", "use_case": "clarify scope"},
  {"text": "That works for me.", "use_case": "agree"}
]`
	got := parseSuggestions(raw)
	if len(got) != 2 {
		t.Fatalf("parsed %d suggestions, want 2", len(got))
	}
	if got[0].Text != "Could you walk me through the timeline?" || got[0].UseCase != "clarify scope" {
		t.Errorf("first suggestion = %+v", got[0])
	}
}

func TestParseJSONStringArray(t *testing.T) {
	got := parseSuggestions(`["Sounds good.", "Let me check and get back to you."]`)
	if len(got) != 2 {
		t.Fatalf("parsed %d suggestions, want 2", len(got))
	}
	if got[1].Text != "Let me check and get back to you." {
		t.Errorf("second suggestion = %+v", got[1])
	}
	if got[0].UseCase != "" {
		t.Errorf("string array entries should have no use case, got %q", got[0].UseCase)
	}
}

func TestParseJSONInsideMarkdownFence(t *testing.T) {
	raw := "```json\n[{\"text\": \"I can own that.\", \"use_case\": \"volunteer\"}]\n```"
	got := parseSuggestions(raw)
	if len(got) != 1 || got[0].Text != "I can own that." {
		t.Fatalf("parsed %+v", got)
	}
}

func TestParseBulletedLines(t *testing.T) {
	raw := `Sure, a few ideas:
- Ask about the budget.
* Confirm the deadline.
• Offer to send a summary.
not a bullet line`
	got := parseSuggestions(raw)
	if len(got) != 3 {
		t.Fatalf("parsed %d suggestions, want 3", len(got))
	}
	if got[2].Text != "Offer to send a summary." {
		t.Errorf("third suggestion = %+v", got[2])
	}
}

func TestParseNumberedLines(t *testing.T) {
	raw := "1. First option.\n2) Second option.\n10. Tenth option."
	got := parseSuggestions(raw)
	if len(got) != 3 {
		t.Fatalf("parsed %d suggestions, want 3", len(got))
	}
	if got[1].Text != "Second option." {
		t.Errorf("second suggestion = %+v", got[1])
	}
}

func TestParseGarbageYieldsEmptyList(t *testing.T) {
	for _, raw := range []string{
		"",
		"I'm sorry, I can't help with that.",
		"{not json at all",
	} {
		if got := parseSuggestions(raw); len(got) != 0 {
			t.Errorf("parseSuggestions(%q) = %+v, want empty", raw, got)
		}
	}
}

func TestParseDropsEmptyEntries(t *testing.T) {
	got := parseSuggestions(`[{"text": "keep me"}, {"text": "  "}, {"text": ""}]`)
	if len(got) != 1 || got[0].Text != "keep me" {
		t.Fatalf("parsed %+v, want just the non-empty entry", got)
	}
}
