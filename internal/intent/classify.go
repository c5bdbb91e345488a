// Package intent provides cosine-similarity classification over the catalog.
package intent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/models"
)

// ConfidenceThreshold is the minimum classification confidence required to
// act on a match; below it the dispatcher asks for clarification.
const ConfidenceThreshold = 0.5

// Classify embeds the query and scores it against every intent centroid by
// cosine similarity. Ties break in favor of the first intent in catalog
// order. The catalog is never mutated.
func (c *Catalog) Classify(ctx context.Context, embedder embed.Embedder, query string) (models.ClassificationResult, error) {
	if len(c.intents) == 0 {
		return models.ClassificationResult{}, models.ErrNoIntentsLoaded
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Catalog.Classify: failed to embed query", "error", err)
		return models.ClassificationResult{}, fmt.Errorf("failed to embed query: %w", err)
	}
	queryNorm := embed.Normalize(queryVec)

	// Seed from the first intent so ties, including a uniform floor across
	// every centroid, resolve to the earliest catalog position.
	best := 0
	maxSim := embed.Dot(queryNorm, embed.Normalize(c.intents[0].Centroid))
	for i := 1; i < len(c.intents); i++ {
		sim := embed.Dot(queryNorm, embed.Normalize(c.intents[i].Centroid))
		if sim > maxSim {
			maxSim = sim
			best = i
		}
	}

	matched := c.intents[best]
	slog.Debug("Catalog.Classify: matched intent", "tag", matched.Tag, "confidence", maxSim)
	return models.ClassificationResult{
		Tag:        matched.Tag,
		Confidence: maxSim,
		Script:     matched.Script,
		Flow:       matched.Flow,
	}, nil
}
