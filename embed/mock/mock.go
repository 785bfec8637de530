// Package mock is a deterministic hash-based embedder for tests and
// for running without a local model.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/parleylabs/recall-go/embed"
)

// Embedder generates deterministic unit vectors from a text hash.
// Identical text always yields an identical vector; it provides no
// real semantic similarity.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder. dims defaults to 384 (all-MiniLM-L6-v2)
// when zero.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{dimensions: dims}
}

// Embed hashes the text and expands the hash into a unit vector with
// a simple LCG.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text in order.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embed.BatchFromSingle(ctx, m, texts)
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int { return m.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
