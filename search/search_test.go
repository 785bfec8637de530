package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/index"
	"github.com/parleylabs/recall-go/search"
	"github.com/parleylabs/recall-go/store/memstore"
)

// tableEmbedder returns scripted vectors per text, so tests control
// the geometry exactly.
type tableEmbedder map[string][]float32

func (e tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (tableEmbedder) Dimensions() int { return 3 }

func floor(v float64) *float64 { return &v }

func seed(t *testing.T, st *memstore.Store, ix *index.Index, id string, vec []float32, status core.ConversationStatus, created time.Time) {
	t.Helper()
	ctx := context.Background()
	conv := &core.Conversation{ID: id, Title: "About " + id, Status: status, CreatedAt: created}
	if status == core.StatusEnded {
		ended := created.Add(time.Hour)
		conv.EndedAt = &ended
		conv.Summary = "summary of " + id
	}
	if err := st.CreateConversation(ctx, conv); err != nil {
		t.Fatal(err)
	}
	attrs := index.Attrs{CreatedAt: created, Status: string(status)}
	if err := ix.Upsert(id, vec, map[string]any{"message_count": 4}, attrs); err != nil {
		t.Fatal(err)
	}
}

func TestSearch_RanksByScoreAndOnlyEnded(t *testing.T) {
	st := memstore.New()
	ix := index.New(3)
	created := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	seed(t, st, ix, "docker", []float32{1, 0, 0}, core.StatusEnded, created)
	seed(t, st, ix, "kubernetes", []float32{0.9, 0.1, 0}, core.StatusEnded, created)
	seed(t, st, ix, "live-docker", []float32{1, 0, 0}, core.StatusActive, created)

	emb := tableEmbedder{"containers": {1, 0, 0}}
	results, err := search.New(emb, ix, st).Search(context.Background(), "containers", search.Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (active conversations excluded): %+v", len(results), results)
	}
	if results[0].ConversationID != "docker" || results[1].ConversationID != "kubernetes" {
		t.Errorf("ranking wrong: %+v", results)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %+v", results)
	}
	if results[0].Summary != "summary of docker" || results[0].MessageCount != 4 {
		t.Errorf("stored fields not joined: %+v", results[0])
	}
}

func TestSearch_DateRange(t *testing.T) {
	st := memstore.New()
	ix := index.New(3)
	vec := []float32{1, 0, 0}
	seed(t, st, ix, "january", vec, core.StatusEnded, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))
	seed(t, st, ix, "june", vec, core.StatusEnded, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	emb := tableEmbedder{"q": vec}
	from := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	results, err := search.New(emb, ix, st).Search(context.Background(), "q", search.Options{From: &from})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ConversationID != "june" {
		t.Fatalf("date filter wrong: %+v", results)
	}
}

func TestSearch_MinSimilarityCut(t *testing.T) {
	st := memstore.New()
	ix := index.New(3)
	created := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	seed(t, st, ix, "near", []float32{1, 0, 0}, core.StatusEnded, created)
	seed(t, st, ix, "far", []float32{0, 1, 0}, core.StatusEnded, created)

	emb := tableEmbedder{"q": {1, 0, 0}}
	results, err := search.New(emb, ix, st).Search(context.Background(), "q", search.Options{MinSimilarity: floor(0.5)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ConversationID != "near" {
		t.Fatalf("similarity cut wrong: %+v", results)
	}
}

func TestSearch_ExplicitZeroFloor(t *testing.T) {
	st := memstore.New()
	ix := index.New(3)
	created := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	// Similarity to the query is ~0.2: below the 0.3 default, above 0.
	seed(t, st, ix, "weak", []float32{0.2, 0.98, 0}, core.StatusEnded, created)

	emb := tableEmbedder{"q": {1, 0, 0}}
	svc := search.New(emb, ix, st)

	results, err := svc.Search(context.Background(), "q", search.Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("default floor admitted a weak match: %+v", results)
	}

	results, err = svc.Search(context.Background(), "q", search.Options{MinSimilarity: floor(0)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ConversationID != "weak" {
		t.Fatalf("explicit zero floor must admit the weak match: %+v", results)
	}
}

func TestSearch_StaleIndexEntrySkipped(t *testing.T) {
	st := memstore.New()
	ix := index.New(3)
	created := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	seed(t, st, ix, "kept", []float32{1, 0, 0}, core.StatusEnded, created)

	// An index record whose conversation no longer exists in storage.
	if err := ix.Upsert("orphan", []float32{1, 0, 0}, nil, index.Attrs{CreatedAt: created, Status: string(core.StatusEnded)}); err != nil {
		t.Fatal(err)
	}

	emb := tableEmbedder{"q": {1, 0, 0}}
	results, err := search.New(emb, ix, st).Search(context.Background(), "q", search.Options{MinSimilarity: floor(0.5)})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ConversationID != "kept" {
		t.Fatalf("stale entry not skipped: %+v", results)
	}
}

func TestSearch_Validation(t *testing.T) {
	svc := search.New(tableEmbedder{}, index.New(3), memstore.New())

	if _, err := svc.Search(context.Background(), "  ", search.Options{}); !core.IsValidation(err) {
		t.Errorf("blank query: expected ValidationError, got %v", err)
	}
	if _, err := svc.Search(context.Background(), "q", search.Options{TopK: -1}); !core.IsValidation(err) {
		t.Errorf("negative topK: expected ValidationError, got %v", err)
	}
}
