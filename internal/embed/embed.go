// Package embed provides text embedding for FixPipe.
//
// It defines the Embedder interface consumed by the intent and kb modules,
// an OpenAI-backed implementation, and a caching decorator that memoizes
// embeddings per input text.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder maps text to a fixed-length vector. Implementations must be
// deterministic for identical input and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Opts holds configuration options for the OpenAI embedder.
type Opts struct {
	APIKey string // OpenAI API key (falls back to $OPENAI_API_KEY)
	Model  string // embedding model identifier
}

// Option defines a configuration option for the OpenAI embedder.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// OpenAIEmbedder produces embeddings via the OpenAI Embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates a new embedder, applying any provided options.
func NewOpenAIEmbedder(opts ...Option) (*OpenAIEmbedder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	slog.Debug("NewOpenAIEmbedder created", "model", model)
	return &OpenAIEmbedder{client: openai.NewClient(option.WithAPIKey(apiKey)), model: model}, nil
}

// Embed returns the embedding vector for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: e.model,
	})
	if err != nil {
		slog.Error("OpenAIEmbedder.Embed request failed", "error", err)
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		slog.Error("OpenAIEmbedder.Embed returned no data")
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}
