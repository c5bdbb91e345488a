// Package genai provides GenAI-enhanced response generation using the OpenAI API.
//
// The client is optional throughout FixPipe: a nil *Client is valid and every
// method degrades to a deterministic fallback, so the service runs without an
// API key (classification and flows do not depend on generation).
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fixpipe/fixpipe/internal/models"
)

// enhanceFallback is returned when RAG answer synthesis fails.
const enhanceFallback = "I need to verify the documentation. Could you please rephrase your question?"

// maxContextHits bounds how many search hits are folded into the prompt.
const maxContextHits = 2

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat completion model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion service for response generation.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client, applying any provided options. The
// API key falls back to the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
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
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai.NewClient created", "model", model)
	return &Client{chat: &cli.Chat.Completions, model: model}, nil
}

// Enhance synthesizes an answer to the query grounded on the given search
// hits. Any failure returns a generic fallback message.
func (c *Client) Enhance(ctx context.Context, query string, hits []models.SearchHit) string {
	if c == nil {
		return enhanceFallback
	}

	var b strings.Builder
	for i, hit := range filterHits(hits, query) {
		fmt.Fprintf(&b, "[Document %d] (%s, page %s): %s\n", i+1, hit.Source, hit.Page, hit.Content)
	}
	prompt := fmt.Sprintf(`Generate a precise response using these documents.

USER QUERY: %s

RELEVANT DOCUMENTS:
%s
RESPONSE REQUIREMENTS:
1. Strictly use information from the provided documents
2. Acknowledge when information is unavailable
3. Format with headers, bullets, and code blocks
4. Reference sources like [1], [2]
5. Never invent technical details

TECHNICAL RESPONSE:`, query, b.String())

	text, err := c.complete(ctx, "You are a precise IT support assistant.", prompt)
	if err != nil {
		slog.Error("Client.Enhance: generation failed", "error", err)
		return enhanceFallback
	}
	return text
}

// Humanize rewrites technical output into plain language. Any failure
// returns the input unchanged.
func (c *Client) Humanize(ctx context.Context, text string) string {
	if c == nil || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := c.complete(ctx, "You simplify technical messages for non-technical users. Keep the meaning intact.",
		"Simplify this technical message: "+text)
	if err != nil {
		slog.Error("Client.Humanize: generation failed", "error", err)
		return text
	}
	return out
}

// complete issues a single chat completion and returns the first choice.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// filterHits orders hits by keyword overlap with the query and keeps the top few.
func filterHits(hits []models.SearchHit, query string) []models.SearchHit {
	keywords := strings.Fields(strings.ToLower(query))
	scored := make([]models.SearchHit, len(hits))
	copy(scored, hits)
	sort.SliceStable(scored, func(i, j int) bool {
		return keywordOverlap(scored[i].Content, keywords) > keywordOverlap(scored[j].Content, keywords)
	})
	if len(scored) > maxContextHits {
		scored = scored[:maxContextHits]
	}
	return scored
}

func keywordOverlap(content string, keywords []string) int {
	lower := strings.ToLower(content)
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
