// Package intent provides atomic catalog replacement for live reloads.
package intent

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/models"
)

// Provider owns the current catalog reference and swaps it atomically on
// reload. Readers call Current without synchronization; a reload never
// mutates a catalog in place.
type Provider struct {
	path     string
	embedder embed.Embedder
	current  atomic.Pointer[Catalog]
}

// NewProvider loads the initial catalog from path and returns a provider
// that can reload it later.
func NewProvider(ctx context.Context, path string, embedder embed.Embedder) (*Provider, error) {
	cat, err := LoadCatalogFile(ctx, path, embedder)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path, embedder: embedder}
	p.current.Store(cat)
	return p, nil
}

// Current returns the active catalog.
func (p *Provider) Current() *Catalog {
	return p.current.Load()
}

// Classify scores the query against the active catalog.
func (p *Provider) Classify(ctx context.Context, query string) (models.ClassificationResult, error) {
	return p.Current().Classify(ctx, p.embedder, query)
}

// Reload rebuilds the catalog from disk and swaps it in. On failure the
// previous catalog stays active.
func (p *Provider) Reload(ctx context.Context) error {
	cat, err := LoadCatalogFile(ctx, p.path, p.embedder)
	if err != nil {
		slog.Error("Provider.Reload: reload failed, keeping previous catalog", "error", err, "path", p.path)
		return err
	}
	p.current.Store(cat)
	slog.Info("Provider.Reload: catalog replaced", "intents", cat.Len())
	return nil
}
