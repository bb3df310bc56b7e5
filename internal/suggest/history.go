package suggest

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// HistoryConfig tunes conversational context compaction. Zero fields get
// defaults.
type HistoryConfig struct {
	// KeepRecent is how many exchanges survive compaction verbatim.
	KeepRecent int

	// CompactThreshold is the exchange count above which compaction runs.
	CompactThreshold int

	// CompactInterval is the minimum time between compactions.
	CompactInterval time.Duration

	// CharBudget caps the characters of history rendered into a prompt.
	CharBudget int
}

func (c *HistoryConfig) applyDefaults() {
	if c.KeepRecent <= 0 {
		c.KeepRecent = 5
	}
	if c.CompactThreshold <= 0 {
		c.CompactThreshold = 10
	}
	if c.CompactInterval <= 0 {
		c.CompactInterval = 2 * time.Minute
	}
	if c.CharBudget <= 0 {
		c.CharBudget = 4000
	}
}

// Exchange is one transcript/response pair in the conversation history. A
// compaction collapses older exchanges into a single synthetic entry with
// Summary set.
type Exchange struct {
	Transcript string
	Response   string
	At         time.Time
	Summary    bool
}

// History holds the bounded conversational context for one session. Appends
// trigger compaction when both the exchange count exceeds the threshold and
// the compaction interval has elapsed: everything but the most recent
// KeepRecent exchanges collapses into one summary exchange truncated to the
// character budget.
//
// Safe for concurrent use.
type History struct {
	cfg HistoryConfig
	now func() time.Time

	mu          sync.Mutex
	exchanges   []Exchange
	lastCompact time.Time
}

// NewHistory creates an empty history.
func NewHistory(cfg HistoryConfig) *History {
	cfg.applyDefaults()
	h := &History{cfg: cfg, now: time.Now}
	h.lastCompact = h.now()
	return h
}

// Append records one exchange and compacts if due.
func (h *History) Append(transcript, response string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = append(h.exchanges, Exchange{
		Transcript: transcript,
		Response:   response,
		At:         h.now(),
	})
	h.compactLocked()
}

// Len returns the current exchange count, counting a summary as one.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.exchanges)
}

// Snapshot returns a copy of all exchanges, oldest first.
func (h *History) Snapshot() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// Window returns the most recent exchanges whose rendered size fits the
// character budget, oldest first. A summary exchange is included like any
// other.
func (h *History) Window() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	budget := h.cfg.CharBudget
	var picked int
	for i := len(h.exchanges) - 1; i >= 0; i-- {
		cost := len(h.exchanges[i].Transcript) + len(h.exchanges[i].Response)
		if cost > budget {
			break
		}
		budget -= cost
		picked++
	}
	out := make([]Exchange, picked)
	copy(out, h.exchanges[len(h.exchanges)-picked:])
	return out
}

// compactLocked collapses old exchanges when both triggers are satisfied.
// Caller holds h.mu.
func (h *History) compactLocked() {
	if len(h.exchanges) <= h.cfg.CompactThreshold {
		return
	}
	if h.now().Sub(h.lastCompact) < h.cfg.CompactInterval {
		return
	}

	cut := len(h.exchanges) - h.cfg.KeepRecent
	if cut <= 0 {
		return
	}

	summary := summarize(h.exchanges[:cut], h.cfg.CharBudget)
	kept := make([]Exchange, 0, h.cfg.KeepRecent+1)
	kept = append(kept, Exchange{
		Transcript: "(earlier conversation)",
		Response:   summary,
		At:         h.now(),
		Summary:    true,
	})
	kept = append(kept, h.exchanges[cut:]...)
	h.exchanges = kept
	h.lastCompact = h.now()
}

// summarize renders old exchanges into a single text block capped at budget
// characters. Purely extractive: one line per exchange, truncated from the
// front so the most recent of the compacted exchanges survive.
func summarize(old []Exchange, budget int) string {
	var b strings.Builder
	for _, ex := range old {
		fmt.Fprintf(&b, "They said: %s\n", strings.TrimSpace(ex.Transcript))
	}
	s := strings.TrimRight(b.String(), "\n")
	if len(s) > budget {
		s = s[len(s)-budget:]
		if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
			s = s[i+1:]
		}
	}
	return s
}
