// Package intent provides the intent catalog and classifier for FixPipe.
//
// A catalog is built once from a JSON intents file: records are validated,
// duplicates and malformed entries are skipped with warnings, and one
// centroid embedding is precomputed per intent. The catalog is immutable
// after load; reloads build a fresh catalog and swap it atomically.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/models"
)

// catalogFile is the wire shape of the intents JSON document.
type catalogFile struct {
	Intents []models.Intent `json:"intents"`
}

// Catalog holds the loaded intents with their precomputed centroids.
// It is read-only after construction and safe for unsynchronized
// concurrent access.
type Catalog struct {
	intents []models.Intent
}

// LoadCatalog reads intent records from the reader, validates them, and
// precomputes centroid embeddings using the given embedder. Malformed
// records are dropped with a warning; an empty resulting catalog returns
// models.ErrNoIntentsLoaded.
func LoadCatalog(ctx context.Context, r io.Reader, embedder embed.Embedder) (*Catalog, error) {
	var file catalogFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		slog.Error("LoadCatalog: failed to decode intents JSON", "error", err)
		return nil, fmt.Errorf("failed to decode intents: %w", err)
	}
	slog.Debug("LoadCatalog: decoded intent records", "count", len(file.Intents))

	seen := make(map[string]bool)
	var valid []models.Intent
	for _, in := range file.Intents {
		if err := in.Validate(); err != nil {
			slog.Warn("LoadCatalog: skipping invalid intent record", "tag", in.Tag, "error", err)
			continue
		}
		if seen[in.Tag] {
			slog.Warn("LoadCatalog: skipping duplicate intent tag", "tag", in.Tag)
			continue
		}
		seen[in.Tag] = true

		// Script absence is non-fatal at load; it surfaces when the script runs.
		if in.Script != "" {
			if _, err := os.Stat(in.Script); err != nil {
				slog.Warn("LoadCatalog: intent script not found", "tag", in.Tag, "script", in.Script)
			}
		}
		valid = append(valid, in)
	}

	intents, err := precompute(ctx, valid, embedder)
	if err != nil {
		return nil, err
	}
	if len(intents) == 0 {
		slog.Error("LoadCatalog: catalog is empty after validation")
		return nil, models.ErrNoIntentsLoaded
	}
	slog.Info("LoadCatalog: catalog loaded", "intents", len(intents))
	return &Catalog{intents: intents}, nil
}

// LoadCatalogFile opens path and loads the catalog from it.
func LoadCatalogFile(ctx context.Context, path string, embedder embed.Embedder) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("LoadCatalogFile: failed to open intents file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open intents file %s: %w", path, err)
	}
	defer f.Close()
	return LoadCatalog(ctx, f, embedder)
}

// precompute computes each intent's centroid as the dimension-wise mean of
// its pattern embeddings. Patterns that fail to embed are skipped; an intent
// whose patterns all fail is excluded.
func precompute(ctx context.Context, intents []models.Intent, embedder embed.Embedder) ([]models.Intent, error) {
	out := make([]models.Intent, 0, len(intents))
	for _, in := range intents {
		var vectors [][]float64
		for _, p := range in.Patterns {
			v, err := embedder.Embed(ctx, p)
			if err != nil {
				slog.Warn("precompute: pattern failed to embed", "tag", in.Tag, "error", err)
				continue
			}
			vectors = append(vectors, v)
		}
		if len(vectors) == 0 {
			slog.Error("precompute: all patterns failed to embed, excluding intent", "tag", in.Tag)
			continue
		}
		in.Centroid = embed.Mean(vectors)
		out = append(out, in)
		slog.Debug("precompute: centroid computed", "tag", in.Tag, "patterns", len(vectors), "dim", len(in.Centroid))
	}
	return out, nil
}

// Len returns the number of intents in the catalog.
func (c *Catalog) Len() int {
	return len(c.intents)
}

// Tags returns the intent tags in catalog order.
func (c *Catalog) Tags() []string {
	tags := make([]string, len(c.intents))
	for i, in := range c.intents {
		tags[i] = in.Tag
	}
	return tags
}
