package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/store"
	"github.com/parleylabs/recall-go/store/sqlite"
)

func open(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationRoundTrip(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	conv := &core.Conversation{
		ID:        "c1",
		Title:     "Durable",
		Status:    core.StatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	got, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Title != conv.Title || got.Status != conv.Status {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.EndedAt != nil {
		t.Errorf("active conversation has EndedAt: %v", got.EndedAt)
	}

	ended := time.Now().UTC().Truncate(time.Second)
	got.Status = core.StatusEnded
	got.Summary = "all done"
	got.EndedAt = &ended
	if err := s.UpdateConversation(ctx, got); err != nil {
		t.Fatalf("UpdateConversation failed: %v", err)
	}

	got, err = s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.Status != core.StatusEnded || got.Summary != "all done" || got.EndedAt == nil {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	s := open(t)
	if _, err := s.GetConversation(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateConversation(context.Background(), &core.Conversation{ID: "nope"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update of missing row: expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessage_SequencesPerConversation(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, id := range []string{"a", "b"} {
		if err := s.CreateConversation(ctx, &core.Conversation{ID: id, Status: core.StatusActive, CreatedAt: now}); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 3; i++ {
		msg := &core.Message{Role: core.RoleUser, Content: "in a"}
		if err := s.AppendMessage(ctx, "a", msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if msg.Seq != int64(i+1) {
			t.Errorf("conversation a: seq %d, want %d", msg.Seq, i+1)
		}
	}
	msg := &core.Message{Role: core.RoleUser, Content: "in b"}
	if err := s.AppendMessage(ctx, "b", msg); err != nil {
		t.Fatal(err)
	}
	if msg.Seq != 1 {
		t.Errorf("sequences must be per conversation, got seq %d", msg.Seq)
	}

	if err := s.AppendMessage(ctx, "missing", &core.Message{Content: "x"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("append to missing conversation: expected ErrNotFound, got %v", err)
	}

	msgs, err := s.ListMessages(ctx, "a")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != int64(i+1) {
			t.Errorf("messages out of order: %+v", msgs)
		}
	}

	n, err := s.CountMessages(ctx, "a")
	if err != nil || n != 3 {
		t.Errorf("CountMessages = %d, %v; want 3", n, err)
	}
}

func TestListConversations_FilterAndOrder(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	add := func(id string, offset time.Duration, status core.ConversationStatus) {
		t.Helper()
		err := s.CreateConversation(ctx, &core.Conversation{ID: id, Status: status, CreatedAt: base.Add(offset)})
		if err != nil {
			t.Fatal(err)
		}
	}
	add("old-ended", 0, core.StatusEnded)
	add("new-ended", 48*time.Hour, core.StatusEnded)
	add("mid-active", 24*time.Hour, core.StatusActive)

	out, err := s.ListConversations(ctx, store.ListFilter{Status: core.StatusEnded})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "new-ended" || out[1].ID != "old-ended" {
		t.Fatalf("wrong listing: %+v", out)
	}

	from := base.Add(12 * time.Hour)
	to := base.Add(36 * time.Hour)
	out, err = s.ListConversations(ctx, store.ListFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "mid-active" {
		t.Fatalf("date range wrong: %+v", out)
	}
}
