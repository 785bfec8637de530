// Package chromem is a Searcher backed by chromem-go, an embedded
// pure-Go vector database. It honors the same query contract as the
// brute-force index and exists to show the Searcher seam working over
// a real vector store.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/index"
)

const collectionName = "conversations"

// Store adapts a chromem collection to index.Searcher.
type Store struct {
	dim int
	col *chromem.Collection

	mu    sync.RWMutex
	attrs map[string]index.Attrs // Shadow copy for range filtering.
}

// New creates an empty chromem-backed store of the given dimension.
func New(dim int) (*Store, error) {
	db := chromem.NewDB()
	// Embeddings are supplied by the caller, so no embedding func.
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{dim: dim, col: col, attrs: make(map[string]index.Attrs)}, nil
}

// Upsert inserts or replaces the document for id.
func (s *Store) Upsert(id string, vector []float32, metadata map[string]any, attrs Attrs) error {
	if len(vector) != s.dim {
		return &core.DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}

	content, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := chromem.Document{
		ID:        id,
		Content:   string(content),
		Embedding: vector,
		Metadata: map[string]string{
			"status":     attrs.Status,
			"created_at": attrs.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := s.col.AddDocument(context.Background(), doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	s.attrs[id] = attrs
	return nil
}

// Query runs a filtered similarity query. chromem's where clause
// covers the exact-match status; the date range is applied on the
// shadow attrs, then results are trimmed to topK with deterministic
// tie ordering.
func (s *Store) Query(vector []float32, topK int, filter index.Filter, minSimilarity float64) ([]index.Match, error) {
	if topK < 1 {
		return nil, &core.ValidationError{Field: "topK", Reason: "must be >= 1"}
	}
	if len(vector) != s.dim {
		return nil, &core.DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection; ask for
	// everything and trim after the date filter.
	var where map[string]string
	if filter.Status != "" {
		where = map[string]string{"status": filter.Status}
	}
	results, err := s.col.QueryEmbedding(context.Background(), vector, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]index.Match, 0, len(results))
	for _, res := range results {
		attrs, ok := s.attrs[res.ID]
		if !ok || !filter.Matches(attrs) {
			continue
		}
		score := float64(res.Similarity)
		if score < minSimilarity {
			continue
		}
		var metadata map[string]any
		if res.Content != "" {
			if err := json.Unmarshal([]byte(res.Content), &metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", res.ID, err)
			}
		}
		matches = append(matches, index.Match{ID: res.ID, Score: score, Metadata: metadata})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes the document for id, if present.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.Delete(context.Background(), nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(s.attrs, id)
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// Attrs aliases index.Attrs so call sites read naturally.
type Attrs = index.Attrs
