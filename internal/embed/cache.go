// Package embed provides a memoizing decorator for Embedders.
package embed

import (
	"context"
	"log/slog"
	"sync"
)

// Cache wraps an Embedder and memoizes results per input text. Catalog load
// and knowledge base indexing embed the same strings repeatedly; the cache
// makes those passes cheap and keeps the Embedder deterministic per input
// from the caller's point of view.
type Cache struct {
	inner   Embedder
	mu      sync.RWMutex
	vectors map[string][]float64
}

// NewCache creates a caching decorator around the given Embedder.
func NewCache(inner Embedder) *Cache {
	return &Cache{inner: inner, vectors: make(map[string][]float64)}
}

// Embed returns the cached vector for text, embedding it on first use.
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	c.mu.RLock()
	v, ok := c.vectors[text]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.vectors[text] = v
	c.mu.Unlock()
	slog.Debug("embed.Cache stored vector", "text_len", len(text), "dim", len(v))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
