// Package embed wraps the text embedding capability: text in, fixed
// length vector out, plus cosine similarity over those vectors.
package embed

import (
	"context"
	"math"

	"github.com/parleylabs/recall-go/core"
)

// Embedder converts text to vector embeddings. Implementations must
// be deterministic for identical input up to floating-point noise;
// callers tolerate that noise rather than assume exact equality.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts in order. It is a throughput
	// optimization only: results must match per-item Embed calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. It
// fails with core.ErrDegenerateVector when either vector has zero
// magnitude, and with a DimensionMismatchError on unequal lengths.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &core.DimensionMismatchError{Want: len(a), Got: len(b)}
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, core.ErrDegenerateVector
	}
	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp float drift so callers can rely on the [-1, 1] contract.
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score, nil
}

// BatchFromSingle implements EmbedBatch for embedders whose backend
// has no batch endpoint, preserving input order.
func BatchFromSingle(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
