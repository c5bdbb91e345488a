// Package kb provides the documentation knowledge base for FixPipe.
//
// Text and markdown files from a docs directory are split into overlapping
// chunks, embedded once at build time, and served through a cosine top-k
// search. The index is immutable after construction and safe for
// unsynchronized concurrent reads.
package kb

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fixpipe/fixpipe/internal/embed"
	"github.com/fixpipe/fixpipe/internal/models"
)

// Default configuration constants
const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1200
	// DefaultChunkOverlap is how many runes consecutive chunks share.
	DefaultChunkOverlap = 300
	// DefaultTopK is the default number of search results.
	DefaultTopK = 5
	// MaxSnippetLength truncates returned chunk content.
	MaxSnippetLength = 700
)

// Opts holds configuration options for the knowledge base.
type Opts struct {
	ChunkSize    int
	ChunkOverlap int
}

// Option defines a configuration option for the knowledge base.
type Option func(*Opts)

// WithChunking sets the chunk size and overlap in runes.
func WithChunking(size, overlap int) Option {
	return func(o *Opts) {
		o.ChunkSize = size
		o.ChunkOverlap = overlap
	}
}

// chunk is one embedded slice of a source document.
type chunk struct {
	source  string
	page    string
	content string
	vector  []float64 // L2-normalized
}

// KnowledgeBase serves top-k cosine search over embedded document chunks.
type KnowledgeBase struct {
	embedder embed.Embedder
	chunks   []chunk
}

// Searcher is the interface consumed by the dispatcher.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchHit, error)
}

// New builds a knowledge base by loading, chunking, and embedding every
// .txt and .md file under docsDir. Files that fail to read or embed are
// skipped with a warning; an empty index is valid and returns no hits.
func New(ctx context.Context, docsDir string, embedder embed.Embedder, opts ...Option) (*KnowledgeBase, error) {
	cfg := Opts{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(&cfg)
	}

	kb := &KnowledgeBase{embedder: embedder}
	err := filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isIndexable(path) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			slog.Warn("kb.New: failed to read document", "error", readErr, "path", path)
			return nil
		}
		kb.indexDocument(ctx, filepath.Base(path), string(data), cfg)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("kb.New: docs directory missing, knowledge base is empty", "dir", docsDir)
			return kb, nil
		}
		slog.Error("kb.New: failed to walk docs directory", "error", err, "dir", docsDir)
		return nil, fmt.Errorf("failed to index docs directory %s: %w", docsDir, err)
	}
	slog.Info("kb.New: knowledge base indexed", "dir", docsDir, "chunks", len(kb.chunks))
	return kb, nil
}

// indexDocument chunks and embeds a single document.
func (kb *KnowledgeBase) indexDocument(ctx context.Context, source, text string, cfg Opts) {
	pieces := splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
	for i, piece := range pieces {
		v, err := kb.embedder.Embed(ctx, piece)
		if err != nil {
			slog.Warn("kb.indexDocument: chunk failed to embed, skipping", "error", err, "source", source, "chunk", i)
			continue
		}
		kb.chunks = append(kb.chunks, chunk{
			source:  source,
			page:    fmt.Sprintf("%d", i+1),
			content: piece,
			vector:  embed.Normalize(v),
		})
	}
	slog.Debug("kb.indexDocument: document indexed", "source", source, "chunks", len(pieces))
}

// Search returns the top-k chunks most similar to the query. An empty index
// or a query that fails to embed returns no hits and the embed error.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	if len(kb.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := kb.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("KnowledgeBase.Search: failed to embed query", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryNorm := embed.Normalize(queryVec)

	hits := make([]models.SearchHit, 0, len(kb.chunks))
	for _, c := range kb.chunks {
		hits = append(hits, models.SearchHit{
			Source:  c.source,
			Content: snippet(c.content),
			Page:    c.page,
			Score:   embed.Dot(queryNorm, c.vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	slog.Debug("KnowledgeBase.Search: search complete", "hits", len(hits), "top_score", hits[0].Score)
	return hits, nil
}

// Len returns the number of indexed chunks.
func (kb *KnowledgeBase) Len() int {
	return len(kb.chunks)
}

// snippet truncates chunk content to MaxSnippetLength runes.
func snippet(s string) string {
	runes := []rune(s)
	if len(runes) > MaxSnippetLength {
		runes = runes[:MaxSnippetLength]
	}
	return strings.TrimSpace(string(runes))
}

// isIndexable reports whether the file extension is supported.
func isIndexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	default:
		return false
	}
}

// splitText splits text into chunks of at most size runes with the given
// overlap, preferring to break at paragraph and sentence boundaries.
func splitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := findBreak(runes, start, end)
		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak looks backward from end for a paragraph, newline, or sentence
// boundary to cut at, falling back to the hard limit.
func findBreak(runes []rune, start, end int) int {
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > start+2; i-- {
		if runes[i-2] == '.' && runes[i-1] == ' ' {
			return i
		}
	}
	return end
}
