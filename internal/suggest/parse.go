package suggest

import (
	"encoding/json"
	"strings"
)

// Suggestion is one proposed response for the user.
type Suggestion struct {
	// Text is the suggested response, in the user's voice.
	Text string `json:"text"`

	// UseCase is a short hint on when the suggestion applies. May be empty.
	UseCase string `json:"use_case"`
}

// parseSuggestions turns raw model output into suggestions. It first looks
// for a JSON array (objects or plain strings, tolerating surrounding prose or
// markdown fences), then falls back to bullet and numbered lines. Output that
// matches neither yields an empty list; the caller treats that as "nothing to
// show", not an error.
func parseSuggestions(raw string) []Suggestion {
	if s := parseJSONArray(raw); s != nil {
		return s
	}
	return parseLines(raw)
}

func parseJSONArray(raw string) []Suggestion {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return nil
	}
	body := []byte(raw[start : end+1])

	var objs []Suggestion
	if err := json.Unmarshal(body, &objs); err == nil {
		return compact(objs)
	}

	var strs []string
	if err := json.Unmarshal(body, &strs); err == nil {
		out := make([]Suggestion, 0, len(strs))
		for _, s := range strs {
			out = append(out, Suggestion{Text: s})
		}
		return compact(out)
	}
	return nil
}

// parseLines treats each bulleted or numbered line as one suggestion.
func parseLines(raw string) []Suggestion {
	var out []Suggestion
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		stripped, ok := stripMarker(line)
		if !ok {
			continue
		}
		out = append(out, Suggestion{Text: stripped})
	}
	return compact(out)
}

// stripMarker removes a leading list marker and reports whether the line had
// one.
func stripMarker(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	// Numbered: "1. text" or "1) text".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}

// compact drops entries with empty text; a nil-but-attempted parse becomes an
// empty non-nil slice so callers can distinguish "parsed nothing" from "did
// not parse".
func compact(in []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(in))
	for _, s := range in {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
