package suggest

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func testHistory(cfg HistoryConfig, start time.Time) (*History, *time.Time) {
	h := NewHistory(cfg)
	clock := start
	h.now = func() time.Time { return clock }
	h.lastCompact = start
	return h, &clock
}

func TestCompactionCollapsesOldExchanges(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h, clock := testHistory(HistoryConfig{
		KeepRecent:       5,
		CompactThreshold: 10,
		CompactInterval:  2 * time.Minute,
	}, start)

	// 11 exchanges over 11 minutes: the 11th crosses the count threshold
	// with the interval long since elapsed.
	for i := 1; i <= 11; i++ {
		*clock = start.Add(time.Duration(i) * time.Minute)
		h.Append(fmt.Sprintf("utterance %d", i), fmt.Sprintf("reply %d", i))
	}

	got := h.Snapshot()
	if len(got) != 6 {
		t.Fatalf("history has %d exchanges after compaction, want 6 (1 summary + 5 recent)", len(got))
	}
	if !got[0].Summary {
		t.Error("first exchange is not the summary")
	}
	if !strings.Contains(got[0].Response, "utterance 1") {
		t.Errorf("summary does not cover the oldest exchange: %q", got[0].Response)
	}
	for i, ex := range got[1:] {
		want := fmt.Sprintf("utterance %d", i+7)
		if ex.Transcript != want {
			t.Errorf("recent[%d].Transcript = %q, want %q", i, ex.Transcript, want)
		}
		if ex.Summary {
			t.Errorf("recent[%d] marked as summary", i)
		}
	}
}

func TestCompactionWaitsForInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h, clock := testHistory(HistoryConfig{
		KeepRecent:       5,
		CompactThreshold: 10,
		CompactInterval:  2 * time.Minute,
	}, start)

	// Count threshold crossed, but only one minute has passed.
	*clock = start.Add(time.Minute)
	for i := 1; i <= 12; i++ {
		h.Append(fmt.Sprintf("utterance %d", i), "reply")
	}
	if got := h.Len(); got != 12 {
		t.Fatalf("history compacted before the interval elapsed: len = %d", got)
	}

	// Once the interval elapses, the next append compacts.
	*clock = start.Add(3 * time.Minute)
	h.Append("utterance 13", "reply")
	if got := h.Len(); got != 6 {
		t.Errorf("len = %d after interval elapsed, want 6", got)
	}
}

func TestCompactionBelowThresholdNeverRuns(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h, clock := testHistory(HistoryConfig{
		KeepRecent:       5,
		CompactThreshold: 10,
		CompactInterval:  time.Minute,
	}, start)

	*clock = start.Add(time.Hour)
	for i := 1; i <= 10; i++ {
		h.Append(fmt.Sprintf("utterance %d", i), "reply")
	}
	if got := h.Len(); got != 10 {
		t.Errorf("len = %d, want 10 (threshold requires strictly more exchanges)", got)
	}
}

func TestSummaryRespectsCharBudget(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h, clock := testHistory(HistoryConfig{
		KeepRecent:       2,
		CompactThreshold: 4,
		CompactInterval:  time.Minute,
		CharBudget:       120,
	}, start)

	*clock = start.Add(time.Hour)
	long := strings.Repeat("words and more words ", 10)
	for i := 0; i < 5; i++ {
		h.Append(long, "reply")
	}

	got := h.Snapshot()
	if !got[0].Summary {
		t.Fatal("expected a summary exchange")
	}
	if len(got[0].Response) > 120 {
		t.Errorf("summary is %d chars, budget is 120", len(got[0].Response))
	}
}

func TestWindowReturnsBudgetedRecentOldestFirst(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h, _ := testHistory(HistoryConfig{
		KeepRecent:       5,
		CompactThreshold: 100,
		CompactInterval:  time.Minute,
		CharBudget:       60,
	}, start)

	// Each exchange costs 20 chars (10 + 10); three fit in the 60 budget.
	for i := 0; i < 6; i++ {
		h.Append(fmt.Sprintf("say %05d!", i), fmt.Sprintf("ok  %05d!", i))
	}

	win := h.Window()
	if len(win) != 3 {
		t.Fatalf("window has %d exchanges, want 3", len(win))
	}
	if win[0].Transcript != "say 00003!" || win[2].Transcript != "say 00005!" {
		t.Errorf("window not the most recent oldest-first: %q .. %q", win[0].Transcript, win[2].Transcript)
	}
}
