package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleylabs/recall-go/core"
)

// Hub owns the live rooms, one per conversation. Rooms are created
// lazily from storage so a restart picks conversations back up.
type Hub struct {
	cfg Config

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub creates a hub whose rooms share cfg's collaborators.
func NewHub(cfg Config) *Hub {
	return &Hub{cfg: cfg, rooms: make(map[string]*Room)}
}

// CreateConversation persists a fresh conversation and returns its
// room.
func (h *Hub) CreateConversation(ctx context.Context, title string) (*Room, error) {
	if title == "" {
		title = "New Conversation"
	}
	conv := core.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    core.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.cfg.Store.CreateConversation(ctx, &conv); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r := New(conv, h.cfg)
	h.rooms[conv.ID] = r
	return r, nil
}

// Room returns the live room for a conversation, loading it from
// storage on first access.
func (h *Hub) Room(ctx context.Context, conversationID string) (*Room, error) {
	h.mu.Lock()
	if r, ok := h.rooms[conversationID]; ok {
		h.mu.Unlock()
		return r, nil
	}
	h.mu.Unlock()

	conv, err := h.cfg.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Re-check: another caller may have loaded it meanwhile.
	if r, ok := h.rooms[conversationID]; ok {
		return r, nil
	}
	r := New(*conv, h.cfg)
	h.rooms[conversationID] = r
	return r, nil
}

// CloseConversation ends the conversation and drops its room from the
// live set. Closing detaches the room's subscribers, so clients still
// attached see their event channel close rather than a silent stall.
func (h *Hub) CloseConversation(ctx context.Context, conversationID string) (*core.Conversation, error) {
	r, err := h.Room(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := r.Close(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	delete(h.rooms, conversationID)
	h.mu.Unlock()
	return conv, nil
}
