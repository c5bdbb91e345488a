package intent

import (
	"context"
	"os"
	"testing"

	"github.com/fixpipe/fixpipe/internal/testutil"
)

func TestProviderLoadsInitialCatalog(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "intents.json", sampleIntents)

	p, err := NewProvider(context.Background(), path, &testutil.StubEmbedder{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if p.Current().Len() != 2 {
		t.Errorf("expected 2 intents in initial catalog, got %d", p.Current().Len())
	}
}

func TestProviderReloadSwapsCatalog(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "intents.json", sampleIntents)

	p, err := NewProvider(context.Background(), path, &testutil.StubEmbedder{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}

	updated := `{"intents": [{"tag": "only_one", "patterns": ["hello"], "script": "one.sh"}]}`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to rewrite intents file: %v", err)
	}

	if err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if p.Current().Len() != 1 {
		t.Errorf("expected reloaded catalog with 1 intent, got %d", p.Current().Len())
	}
	if p.Current().Tags()[0] != "only_one" {
		t.Errorf("unexpected reloaded tags: %v", p.Current().Tags())
	}
}

func TestProviderReloadFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "intents.json", sampleIntents)

	p, err := NewProvider(context.Background(), path, &testutil.StubEmbedder{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	before := p.Current()

	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("failed to corrupt intents file: %v", err)
	}

	if err := p.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error for corrupt file")
	}
	if p.Current() != before {
		t.Error("failed reload must keep the previous catalog active")
	}
	if p.Current().Len() != 2 {
		t.Errorf("previous catalog should still have 2 intents, got %d", p.Current().Len())
	}
}

func TestProviderClassify(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "intents.json", sampleIntents)

	p, err := NewProvider(context.Background(), path, &testutil.StubEmbedder{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}

	result, err := p.Classify(context.Background(), "wifi not working")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Tag != "wifi_down" {
		t.Errorf("expected wifi_down, got %s", result.Tag)
	}
}
