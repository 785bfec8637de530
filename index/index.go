// Package index stores one fixed-dimension embedding per conversation
// and answers filtered top-k cosine-similarity queries. The reference
// implementation is a brute-force scan over an in-memory corpus; the
// Searcher contract is pure input/output so an approximate structure
// can replace it without touching callers.
package index

import (
	"sort"
	"sync"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/embed"
)

// Attrs are the filterable scalar attributes stored with a record.
type Attrs struct {
	CreatedAt time.Time
	Status    string
}

// Filter restricts a query's candidate set: an inclusive date range
// on Attrs.CreatedAt and an exact-match status. Zero fields match
// everything.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status string
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a Attrs) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && a.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && a.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// Match is one query result. Metadata is returned verbatim; the index
// never interprets it.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Searcher is the index contract: upsert by id, filtered top-k query.
type Searcher interface {
	Upsert(id string, vector []float32, metadata map[string]any, attrs Attrs) error
	Query(vector []float32, topK int, filter Filter, minSimilarity float64) ([]Match, error)
	Delete(id string) error
	Len() int
}

type record struct {
	vector   []float32
	metadata map[string]any
	attrs    Attrs
}

// Index is the brute-force in-memory Searcher. It supports concurrent
// readers; upserts are serialized by the write lock, so two upserts
// for the same id never interleave.
type Index struct {
	dim     int
	mu      sync.RWMutex
	records map[string]*record
}

// New creates an index of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim, records: make(map[string]*record)}
}

// Dimensions returns the configured vector dimension.
func (ix *Index) Dimensions() int { return ix.dim }

// Upsert inserts or fully replaces the record for id. The vector is
// copied, so callers may reuse their slice.
func (ix *Index) Upsert(id string, vector []float32, metadata map[string]any, attrs Attrs) error {
	if len(vector) != ix.dim {
		return &core.DimensionMismatchError{Want: ix.dim, Got: len(vector)}
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	ix.mu.Lock()
	ix.records[id] = &record{vector: vec, metadata: metadata, attrs: attrs}
	ix.mu.Unlock()
	return nil
}

// Query scans every record passing the filter, scores it against
// vector by cosine similarity, drops scores below minSimilarity, and
// returns at most topK matches ordered by descending score with ties
// broken by ascending id.
func (ix *Index) Query(vector []float32, topK int, filter Filter, minSimilarity float64) ([]Match, error) {
	if topK < 1 {
		return nil, &core.ValidationError{Field: "topK", Reason: "must be >= 1"}
	}
	if len(vector) != ix.dim {
		return nil, &core.DimensionMismatchError{Want: ix.dim, Got: len(vector)}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.records))
	for id, rec := range ix.records {
		if !filter.Matches(rec.attrs) {
			continue
		}
		score, err := embed.Cosine(vector, rec.vector)
		if err != nil {
			return nil, err
		}
		if score < minSimilarity {
			continue
		}
		matches = append(matches, Match{ID: id, Score: score, Metadata: rec.metadata})
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

// Delete removes the record for id, if present.
func (ix *Index) Delete(id string) error {
	ix.mu.Lock()
	delete(ix.records, id)
	ix.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}
