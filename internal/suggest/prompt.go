package suggest

import (
	"fmt"
	"strings"

	"github.com/Savin-Alex/ai-consul-sub001/internal/config"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/retrieval"
)

const coreInstruction = `You are a real-time conversation assistant. The user is in a live
conversation and sees your suggestions on a private screen. Propose short
responses the user could say next, in their voice, first person.

Respond with a JSON array of objects, each with "text" (the suggested
response) and "use_case" (a few words on when to use it). Return the JSON
array and nothing else.`

// modeBlocks are the conversation-type directives keyed by suggestion mode.
// Custom mode substitutes the user's own prompt instead.
var modeBlocks = map[config.SuggestionMode]string{
	config.SuggestInterview: `This is a job interview and the user is the candidate. Favor answers
that are specific, structured, and grounded in concrete experience. When a
question is behavioral, shape the suggestion as situation, action, result.`,
	config.SuggestMeeting: `This is a work meeting. Favor suggestions that move the discussion
forward: clarifying questions, concise status statements, and concrete next
steps. Avoid filler.`,
	config.SuggestSales: `This is a sales conversation and the user is the seller. Surface the
prospect's needs, handle objections without being pushy, and steer toward a
clear next step.`,
}

// buildSystemPrompt assembles the instruction the model sees ahead of the
// conversation: core contract, tone directive, mode block.
func buildSystemPrompt(mode config.SuggestionMode, tone, customPrompt string) string {
	var b strings.Builder
	b.WriteString(coreInstruction)

	if tone != "" {
		fmt.Fprintf(&b, "\n\nTone: %s.", strings.TrimRight(tone, "."))
	}

	block := modeBlocks[mode]
	if mode == config.SuggestCustom {
		block = customPrompt
	}
	if block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	return b.String()
}

// buildUserPrompt assembles the per-utterance content: retrieved snippets,
// the recent conversation window oldest-first, then the new transcript.
func buildUserPrompt(transcript string, snippets []retrieval.Snippet, recent []Exchange) string {
	var b strings.Builder

	if len(snippets) > 0 {
		b.WriteString("Background notes:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "- [%s] %s\n", s.Source, strings.TrimSpace(s.Text))
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, ex := range recent {
			if ex.Summary {
				fmt.Fprintf(&b, "(summary of earlier discussion)\n%s\n", ex.Response)
				continue
			}
			fmt.Fprintf(&b, "They said: %s\n", strings.TrimSpace(ex.Transcript))
			if ex.Response != "" {
				fmt.Fprintf(&b, "You suggested: %s\n", strings.TrimSpace(ex.Response))
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "They just said: %s\n\nSuggest responses now.", strings.TrimSpace(transcript))
	return b.String()
}
