package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fixpipe/fixpipe/internal/models"
)

func buildCatalog(t *testing.T, doc string, emb *mapEmbedder) *Catalog {
	t.Helper()
	cat, err := LoadCatalog(context.Background(), strings.NewReader(doc), emb)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return cat
}

func TestClassifyPicksClosestIntent(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float64{
		"wifi pattern":    {1, 0, 0},
		"printer pattern": {0, 1, 0},
		"my wifi is down": {0.9, 0.1, 0},
	}}
	doc := `{"intents": [
		{"tag": "wifi_down", "patterns": ["wifi pattern"], "script": "wifi.sh"},
		{"tag": "printer_jam", "patterns": ["printer pattern"], "script": "printer.sh"}
	]}`
	cat := buildCatalog(t, doc, emb)

	result, err := cat.Classify(context.Background(), emb, "my wifi is down")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Tag != "wifi_down" {
		t.Errorf("expected wifi_down, got %s", result.Tag)
	}
	if result.Confidence <= ConfidenceThreshold {
		t.Errorf("expected high confidence, got %v", result.Confidence)
	}
	if result.Script != "wifi.sh" {
		t.Errorf("expected matched intent script, got %q", result.Script)
	}
}

func TestClassifyTieBreaksOnCatalogOrder(t *testing.T) {
	// Both intents sit at the same vector, so the query scores identically
	// against each; the first in catalog order must win.
	emb := &mapEmbedder{vectors: map[string][]float64{
		"same a": {1, 0, 0},
		"same b": {1, 0, 0},
		"query":  {1, 0, 0},
	}}
	doc := `{"intents": [
		{"tag": "first", "patterns": ["same a"], "script": "a.sh"},
		{"tag": "second", "patterns": ["same b"], "script": "b.sh"}
	]}`
	cat := buildCatalog(t, doc, emb)

	result, err := cat.Classify(context.Background(), emb, "query")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Tag != "first" {
		t.Errorf("tie should break to the first catalog intent, got %s", result.Tag)
	}
}

func TestClassifyHandlesUniformOppositeQuery(t *testing.T) {
	// Every centroid is exactly opposite the query, so all similarities sit
	// at the cosine floor of -1. The first intent must still be returned.
	emb := &mapEmbedder{vectors: map[string][]float64{
		"same a": {1, 0, 0},
		"same b": {1, 0, 0},
		"query":  {-1, 0, 0},
	}}
	doc := `{"intents": [
		{"tag": "first", "patterns": ["same a"], "script": "a.sh"},
		{"tag": "second", "patterns": ["same b"], "script": "b.sh"}
	]}`
	cat := buildCatalog(t, doc, emb)

	result, err := cat.Classify(context.Background(), emb, "query")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Tag != "first" {
		t.Errorf("floor-scoring query should resolve to the first intent, got %s", result.Tag)
	}
	if result.Confidence != -1 {
		t.Errorf("expected confidence -1, got %v", result.Confidence)
	}
}

func TestClassifyLowConfidenceStillReturnsBest(t *testing.T) {
	// Classification itself never refuses a match; the threshold is the
	// dispatcher's concern.
	emb := &mapEmbedder{vectors: map[string][]float64{
		"wifi pattern": {1, 0, 0},
		"unrelated":    {0, 0, 1},
	}}
	doc := `{"intents": [{"tag": "wifi_down", "patterns": ["wifi pattern"], "script": "wifi.sh"}]}`
	cat := buildCatalog(t, doc, emb)

	result, err := cat.Classify(context.Background(), emb, "unrelated")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Tag != "wifi_down" {
		t.Errorf("expected the only intent as best match, got %s", result.Tag)
	}
	if result.Confidence >= ConfidenceThreshold {
		t.Errorf("orthogonal query should score below threshold, got %v", result.Confidence)
	}
}

func TestClassifyEmbedFailure(t *testing.T) {
	embedErr := errors.New("embedding unavailable")
	emb := &mapEmbedder{
		vectors: map[string][]float64{"pattern": {1, 0, 0}},
		fail:    map[string]error{"query": embedErr},
	}
	doc := `{"intents": [{"tag": "only", "patterns": ["pattern"], "script": "s.sh"}]}`
	cat := buildCatalog(t, doc, emb)

	if _, err := cat.Classify(context.Background(), emb, "query"); !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embed error, got %v", err)
	}
}

func TestClassifyEmptyCatalog(t *testing.T) {
	cat := &Catalog{}
	_, err := cat.Classify(context.Background(), &mapEmbedder{}, "anything")
	if !errors.Is(err, models.ErrNoIntentsLoaded) {
		t.Errorf("expected ErrNoIntentsLoaded, got %v", err)
	}
}

func TestClassifyReturnsFlowIntent(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float64{
		"vpn pattern": {1, 0, 0},
		"vpn broken":  {1, 0, 0},
	}}
	doc := `{"intents": [{
		"tag": "vpn_issue",
		"patterns": ["vpn pattern"],
		"flow": [
			{"question": "Which OS?", "key": "os"},
			{"question": "Error message?", "key": "error", "script": "vpn_fix.sh"}
		]
	}]}`
	cat := buildCatalog(t, doc, emb)

	result, err := cat.Classify(context.Background(), emb, "vpn broken")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(result.Flow) != 2 {
		t.Fatalf("expected 2 flow steps, got %d", len(result.Flow))
	}
	if result.Flow.TerminalScript() != "vpn_fix.sh" {
		t.Errorf("expected terminal script, got %q", result.Flow.TerminalScript())
	}
}
