// Package analyze derives secondary artifacts from a conversation:
// an LLM-generated summary, keyword and key-point extraction, and the
// combined text a conversation is embedded from.
package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
	"github.com/parleylabs/recall-go/session"
)

// Summarization runs cool and short relative to chat turns.
const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 500
)

const summaryPrompt = `Please provide a comprehensive summary of the following conversation.
Include:
1. Main topics discussed
2. Key points and insights
3. Any decisions or action items
4. Overall sentiment and tone

Conversation:
%s

Summary:`

// Summarizer generates conversation summaries through the language
// model.
type Summarizer struct {
	session *session.Session
}

// NewSummarizer creates a summarizer over the given provider.
func NewSummarizer(p provider.Provider) *Summarizer {
	return &Summarizer{session: session.New(p)}
}

// Summarize produces a free-text summary of the messages.
func (s *Summarizer) Summarize(ctx context.Context, msgs []core.Message) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, FormatTranscript(msgs))
	history := []core.Message{{Role: core.RoleUser, Content: prompt}}
	params := core.SamplingParams{Temperature: summaryTemperature, MaxTokens: summaryMaxTokens}

	text, err := s.session.Run(ctx, history, params)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// FormatTranscript renders messages as readable "User:"/"AI:" lines.
func FormatTranscript(msgs []core.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		sender := "User"
		if m.Role == core.RoleAssistant {
			sender = "AI"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", sender, m.Content))
	}
	return strings.Join(lines, "\n")
}

// embedMessageLimit caps how much of a long conversation feeds the
// embedding; early turns define the topic well enough.
const embedMessageLimit = 50

// ConversationText combines title, messages, and summary into the
// text a conversation embedding is derived from.
func ConversationText(conv *core.Conversation, msgs []core.Message) string {
	parts := []string{"Title: " + conv.Title}
	for i, m := range msgs {
		if i >= embedMessageLimit {
			break
		}
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	if conv.Summary != "" {
		parts = append(parts, "Summary: "+conv.Summary)
	}
	return strings.Join(parts, "\n")
}

var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {},
	"a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {},
	"about": {}, "their": {}, "would": {}, "there": {}, "could": {},
}

// Keywords extracts up to max keywords: lowercase words longer than
// four characters, minus stopwords, ordered by frequency then
// alphabetically for determinism.
func Keywords(text string, max int) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) <= 4 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

// KeyPoints pulls candidate key points: the opening of each message
// long enough to plausibly carry one, at most five.
func KeyPoints(msgs []core.Message) []string {
	var points []string
	for _, m := range msgs {
		if len(m.Content) <= 100 {
			continue
		}
		point := m.Content
		if len(point) > 200 {
			point = point[:200]
		}
		points = append(points, point)
		if len(points) == 5 {
			break
		}
	}
	return points
}

// approxCharsPerToken is a rough heuristic standing in for a real
// tokenizer; close enough for history budgeting.
const approxCharsPerToken = 4

// TruncateHistory drops oldest messages until the remainder fits the
// approximate token budget, always keeping at least the newest
// message. Order is preserved.
func TruncateHistory(msgs []core.Message, maxTokens int) []core.Message {
	if maxTokens <= 0 || len(msgs) == 0 {
		return msgs
	}
	total := 0
	cut := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		tokens := len(msgs[i].Content)/approxCharsPerToken + 1
		if total+tokens > maxTokens && cut != len(msgs) {
			break
		}
		total += tokens
		cut = i
	}
	return msgs[cut:]
}
