// Package store defines the persistence contract the engine consumes:
// create/read of conversations and append-only messages. Operations
// are atomic per record and immediately consistent for subsequent
// reads.
package store

import (
	"context"
	"time"

	"github.com/parleylabs/recall-go/core"
)

// ListFilter narrows ListConversations. Zero fields match everything.
type ListFilter struct {
	Status core.ConversationStatus
	From   *time.Time
	To     *time.Time
}

// Store is the persistence backend. Messages are append-only: no
// edits, no deletes.
type Store interface {
	CreateConversation(ctx context.Context, conv *core.Conversation) error
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)
	ListConversations(ctx context.Context, filter ListFilter) ([]*core.Conversation, error)

	// UpdateConversation persists status, summary, and end timestamp
	// changes. Title and creation time are immutable.
	UpdateConversation(ctx context.Context, conv *core.Conversation) error

	// AppendMessage assigns the next sequence number within the
	// conversation and persists the message. Seq and CreatedAt on the
	// passed message are filled in.
	AppendMessage(ctx context.Context, conversationID string, msg *core.Message) error

	// ListMessages returns all messages for the conversation in
	// sequence order.
	ListMessages(ctx context.Context, conversationID string) ([]core.Message, error)

	// CountMessages returns the number of messages in the conversation.
	CountMessages(ctx context.Context, conversationID string) (int, error)

	Close() error
}
