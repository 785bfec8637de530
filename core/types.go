// Package core defines the shared domain types for the conversational
// memory engine: conversations, messages, stream chunks, sampling
// parameters, and the error taxonomy used across components.
package core

import (
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationStatus is the lifecycle state of a conversation.
// Transitions are one-way: active -> ended.
type ConversationStatus string

const (
	StatusActive ConversationStatus = "active"
	StatusEnded  ConversationStatus = "ended"
)

// Conversation is one chat thread. EndedAt is set if and only if
// Status is StatusEnded.
type Conversation struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Status    ConversationStatus `json:"status"`
	Summary   string             `json:"summary,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
}

// Ended reports whether the conversation has reached its terminal state.
func (c *Conversation) Ended() bool {
	return c.Status == StatusEnded
}

// Message is one turn entry within a conversation. Messages are
// immutable once persisted and strictly ordered by Seq.
type Message struct {
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// StreamChunk is one incremental unit of generated text. Done marks
// the terminal chunk of a stream; a terminal chunk may carry text.
// Chunks are transient: relayed, accumulated, then discarded.
type StreamChunk struct {
	Role Role
	Text string
	Done bool
}

// Sampling parameter bounds. Out-of-range values are clamped rather
// than rejected so a user-visible turn never aborts over a minor
// parameter error.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// SamplingParams controls token generation.
type SamplingParams struct {
	Temperature float64
	MaxTokens   int
}

// DefaultSamplingParams returns the defaults used when the caller
// does not care.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// Clamp returns a copy with Temperature forced into [0, 2] and
// MaxTokens forced positive.
func (p SamplingParams) Clamp() SamplingParams {
	if p.Temperature < MinTemperature {
		p.Temperature = MinTemperature
	}
	if p.Temperature > MaxTemperature {
		p.Temperature = MaxTemperature
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	return p
}

// SplitSystem validates a message history and separates the system
// context from the conversational turns. At most one leading system
// entry is recognized; any further system entries are discarded.
func SplitSystem(history []Message) (system string, turns []Message, err error) {
	if len(history) == 0 {
		return "", nil, &ValidationError{Field: "history", Reason: "must not be empty"}
	}
	if history[0].Role == RoleSystem {
		system = history[0].Content
		history = history[1:]
	}
	turns = make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		turns = append(turns, m)
	}
	return system, turns, nil
}

// ValidUserText reports whether text is acceptable as user input:
// non-empty after trimming whitespace.
func ValidUserText(text string) bool {
	return strings.TrimSpace(text) != ""
}
