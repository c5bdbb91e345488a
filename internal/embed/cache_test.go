package embed

import (
	"context"
	"errors"
	"testing"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float64{float64(len(text)), 1}, nil
}

func TestCacheMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner)

	first, err := cache.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	second, err := cache.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if first[0] != second[0] || first[1] != second[1] {
		t.Errorf("cached result differs: %v vs %v", first, second)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", cache.Len())
	}
}

func TestCacheDistinctInputs(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCache(inner)

	cache.Embed(context.Background(), "one")
	cache.Embed(context.Background(), "two")

	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls for distinct inputs, got %d", inner.calls)
	}
	if cache.Len() != 2 {
		t.Errorf("expected 2 cached entries, got %d", cache.Len())
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("backend down")}
	cache := NewCache(inner)

	if _, err := cache.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if cache.Len() != 0 {
		t.Errorf("failed embeds must not be cached, got %d entries", cache.Len())
	}

	// Backend recovers; the next call should hit it again and succeed.
	inner.err = nil
	if _, err := cache.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("expected success after recovery, got %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}
}
