package index_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/index"
)

func ts(day int) time.Time {
	return time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC)
}

func TestIndex_RoundTripIdentity(t *testing.T) {
	ix := index.New(3)
	vec := []float32{0.6, 0.8, 0}
	if err := ix.Upsert("conv-1", vec, map[string]any{"title": "t"}, index.Attrs{CreatedAt: ts(1), Status: "ended"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := ix.Query(vec, 1, index.Filter{}, 1.0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "conv-1" {
		t.Fatalf("expected conv-1 as sole match, got %v", matches)
	}
	if math.Abs(matches[0].Score-1) > 1e-9 {
		t.Errorf("self-query score = %v, want 1", matches[0].Score)
	}
	if matches[0].Metadata["title"] != "t" {
		t.Errorf("metadata not returned verbatim: %v", matches[0].Metadata)
	}
}

func TestIndex_UpsertReplaces(t *testing.T) {
	ix := index.New(2)
	attrs := index.Attrs{CreatedAt: ts(1), Status: "ended"}
	if err := ix.Upsert("c", []float32{1, 0}, nil, attrs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := ix.Upsert("c", []float32{0, 1}, nil, attrs); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("Len = %d after replacing upsert, want 1", ix.Len())
	}

	matches, err := ix.Query([]float32{0, 1}, 1, index.Filter{}, 0.99)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("replaced vector not found: %v", matches)
	}
}

func TestIndex_FilterSoundness(t *testing.T) {
	ix := index.New(2)
	vec := []float32{1, 0}
	put := func(id string, day int, status string) {
		t.Helper()
		if err := ix.Upsert(id, vec, nil, index.Attrs{CreatedAt: ts(day), Status: status}); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
	}
	put("early-ended", 1, "ended")
	put("mid-ended", 10, "ended")
	put("late-ended", 20, "ended")
	put("mid-active", 10, "active")

	from, to := ts(5), ts(15)
	matches, err := ix.Query(vec, 10, index.Filter{From: &from, To: &to, Status: "ended"}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "mid-ended" {
		t.Fatalf("filter admitted wrong records: %v", matches)
	}

	// Bounds are inclusive.
	from, to = ts(10), ts(10)
	matches, err = ix.Query(vec, 10, index.Filter{From: &from, To: &to, Status: "ended"}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "mid-ended" {
		t.Fatalf("inclusive bounds broken: %v", matches)
	}
}

func TestIndex_OrderingAndTieBreak(t *testing.T) {
	ix := index.New(2)
	attrs := index.Attrs{CreatedAt: ts(1), Status: "ended"}
	// Two identical vectors tie; the third scores lower.
	if err := ix.Upsert("bbb", []float32{1, 0}, nil, attrs); err != nil {
		t.Fatal(err)
	}
	if err := ix.Upsert("aaa", []float32{1, 0}, nil, attrs); err != nil {
		t.Fatal(err)
	}
	if err := ix.Upsert("ccc", []float32{1, 1}, nil, attrs); err != nil {
		t.Fatal(err)
	}

	matches, err := ix.Query([]float32{1, 0}, 3, index.Filter{}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	got := make([]string, len(matches))
	for i, m := range matches {
		got[i] = m.ID
	}
	want := []string{"aaa", "bbb", "ccc"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d: %v", i, matches)
		}
	}
}

func TestIndex_TopKAndMinSimilarity(t *testing.T) {
	ix := index.New(2)
	attrs := index.Attrs{CreatedAt: ts(1), Status: "ended"}
	vectors := map[string][]float32{
		"exact":    {1, 0},
		"close":    {1, 0.2},
		"sideways": {0, 1},
	}
	for id, v := range vectors {
		if err := ix.Upsert(id, v, nil, attrs); err != nil {
			t.Fatalf("Upsert %s failed: %v", id, err)
		}
	}

	matches, err := ix.Query([]float32{1, 0}, 2, index.Filter{}, 0.5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
	if matches[0].ID != "exact" || matches[1].ID != "close" {
		t.Errorf("wrong matches: %v", matches)
	}

	matches, err = ix.Query([]float32{1, 0}, 1, index.Filter{}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "exact" {
		t.Errorf("topK trim broken: %v", matches)
	}
}

func TestIndex_QueryValidation(t *testing.T) {
	ix := index.New(3)

	if _, err := ix.Query([]float32{1, 0, 0}, 0, index.Filter{}, 0); !core.IsValidation(err) {
		t.Errorf("topK 0: expected ValidationError, got %v", err)
	}

	var dm *core.DimensionMismatchError
	if _, err := ix.Query([]float32{1, 0}, 1, index.Filter{}, 0); !errors.As(err, &dm) {
		t.Errorf("short vector: expected DimensionMismatchError, got %v", err)
	}
	if err := ix.Upsert("x", []float32{1, 0}, nil, index.Attrs{}); !errors.As(err, &dm) {
		t.Errorf("short upsert: expected DimensionMismatchError, got %v", err)
	}
}

func TestIndex_Delete(t *testing.T) {
	ix := index.New(2)
	if err := ix.Upsert("gone", []float32{1, 0}, nil, index.Attrs{Status: "ended"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("Len = %d after delete, want 0", ix.Len())
	}
	// Deleting an absent id is not an error.
	if err := ix.Delete("never-there"); err != nil {
		t.Errorf("Delete of absent id failed: %v", err)
	}
}
