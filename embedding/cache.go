package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps an Embedder with an in-memory LRU keyed by a
// content hash of (model, text). Queries repeat heavily in practice, so
// this saves round trips without any persistence.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder wraps inner with an LRU of the given size.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: create cache: %w", err)
	}

	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}, nil
}

// Embed returns the cached vector or delegates to the wrapped embedder.
// Cached vectors are copied out so callers can normalize in place.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(e.inner.Model(), text)

	if vec, ok := e.cache.Get(key); ok {
		e.hits.Add(1)

		out := make([]float32, len(vec))
		copy(out, vec)

		return out, nil
	}

	e.misses.Add(1)

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	e.cache.Add(key, stored)

	return vec, nil
}

// Dimension returns the wrapped embedder's dimensionality.
func (e *CachedEmbedder) Dimension() int { return e.inner.Dimension() }

// Model returns the wrapped embedder's model identifier.
func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Stats returns cache hit and miss counts.
func (e *CachedEmbedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

func cacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))

	return hex.EncodeToString(h.Sum(nil))
}
