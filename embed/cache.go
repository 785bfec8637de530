package embed

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached decorates an Embedder with a ristretto cache keyed by the
// input text. Since embedders are deterministic per text this is
// semantically transparent; it just spares repeated model calls when
// the same conversation text or query is embedded more than once.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to maxEntries vectors.
func NewCached(inner Embedder, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return BatchFromSingle(ctx, c, texts)
}

func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Close releases the cache's resources.
func (c *Cached) Close() {
	c.cache.Close()
}
