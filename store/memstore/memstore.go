// Package memstore is the in-memory Store used by tests and by runs
// that do not need durability.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/store"
)

type conversation struct {
	conv     core.Conversation
	messages []core.Message
}

// Store keeps everything in maps guarded by one mutex. Good enough
// for the concurrency the engine generates: rooms serialize their own
// turns, so contention here is light.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*conversation
}

// New creates an empty store.
func New() *Store {
	return &Store{convs: make(map[string]*conversation)}
}

func (s *Store) CreateConversation(ctx context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = &conversation{conv: *conv}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := c.conv
	return &out, nil
}

func (s *Store) ListConversations(ctx context.Context, filter store.ListFilter) ([]*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Conversation
	for _, c := range s.convs {
		if filter.Status != "" && c.conv.Status != filter.Status {
			continue
		}
		if filter.From != nil && c.conv.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && c.conv.CreatedAt.After(*filter.To) {
			continue
		}
		conv := c.conv
		out = append(out, &conv)
	}
	// Newest first, matching the SQL backend's ordering.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateConversation(ctx context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conv.ID]
	if !ok {
		return core.ErrNotFound
	}
	c.conv.Status = conv.Status
	c.conv.Summary = conv.Summary
	c.conv.EndedAt = conv.EndedAt
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return core.ErrNotFound
	}
	msg.Seq = int64(len(c.messages) + 1)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	c.messages = append(c.messages, *msg)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := make([]core.Message, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return 0, core.ErrNotFound
	}
	return len(c.messages), nil
}

func (s *Store) Close() error { return nil }
