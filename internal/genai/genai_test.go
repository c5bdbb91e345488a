package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fixpipe/fixpipe/internal/models"
)

// mockChat records the last request and returns a canned completion.
type mockChat struct {
	lastParams openai.ChatCompletionNewParams
	reply      string
	err        error
}

func (m *mockChat) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.lastParams = params
	if m.err != nil {
		return nil, m.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.reply}},
		},
	}, nil
}

func newMockClient(chat *mockChat) *Client {
	return &Client{chat: chat, model: openai.ChatModelGPT4oMini}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected configured model, got %s", cli.model)
	}
}

func TestEnhance(t *testing.T) {
	chat := &mockChat{reply: "Restart the router [1]."}
	cli := newMockClient(chat)

	hits := []models.SearchHit{
		{Source: "wifi.md", Page: "1", Content: "wifi router restart guide"},
	}
	got := cli.Enhance(context.Background(), "wifi broken", hits)
	if got != "Restart the router [1]." {
		t.Errorf("unexpected enhanced response: %q", got)
	}

	if len(chat.lastParams.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(chat.lastParams.Messages))
	}
}

func TestEnhancePromptContainsQueryAndHits(t *testing.T) {
	chat := &mockChat{reply: "ok"}
	cli := newMockClient(chat)

	hits := []models.SearchHit{
		{Source: "wifi.md", Page: "2", Content: "power cycle the router"},
	}
	cli.Enhance(context.Background(), "my wifi is down", hits)

	user := chat.lastParams.Messages[1].OfUser.Content.OfString.Value
	if !strings.Contains(user, "my wifi is down") {
		t.Errorf("prompt missing user query: %q", user)
	}
	if !strings.Contains(user, "wifi.md") || !strings.Contains(user, "power cycle the router") {
		t.Errorf("prompt missing document context: %q", user)
	}
}

func TestEnhanceFallbackOnError(t *testing.T) {
	chat := &mockChat{err: errors.New("rate limited")}
	cli := newMockClient(chat)

	got := cli.Enhance(context.Background(), "query", nil)
	if got != enhanceFallback {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestEnhanceNilClient(t *testing.T) {
	var cli *Client
	if got := cli.Enhance(context.Background(), "query", nil); got != enhanceFallback {
		t.Errorf("nil client should return fallback, got %q", got)
	}
}

func TestHumanize(t *testing.T) {
	chat := &mockChat{reply: "Your internet connection was reset."}
	cli := newMockClient(chat)

	got := cli.Humanize(context.Background(), "eth0 interface bounced, DHCP lease renewed")
	if got != "Your internet connection was reset." {
		t.Errorf("unexpected humanized text: %q", got)
	}
}

func TestHumanizeFallsBackToInput(t *testing.T) {
	chat := &mockChat{err: errors.New("unavailable")}
	cli := newMockClient(chat)

	in := "raw technical output"
	if got := cli.Humanize(context.Background(), in); got != in {
		t.Errorf("failed humanize should return input, got %q", got)
	}
}

func TestHumanizeNilClientAndEmptyText(t *testing.T) {
	var nilCli *Client
	if got := nilCli.Humanize(context.Background(), "text"); got != "text" {
		t.Errorf("nil client should return input, got %q", got)
	}

	cli := newMockClient(&mockChat{reply: "should not be used"})
	if got := cli.Humanize(context.Background(), "   "); got != "   " {
		t.Errorf("blank text should pass through, got %q", got)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	cli := &Client{chat: &emptyChat{}, model: "m"}
	if _, err := cli.complete(context.Background(), "sys", "user"); err == nil {
		t.Error("expected error for empty choices")
	}
}

type emptyChat struct{}

func (emptyChat) New(context.Context, openai.ChatCompletionNewParams, ...option.RequestOption) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}

func TestFilterHitsKeepsMostRelevant(t *testing.T) {
	hits := []models.SearchHit{
		{Source: "a", Content: "nothing related"},
		{Source: "b", Content: "wifi router wifi signal"},
		{Source: "c", Content: "router placement"},
	}
	got := filterHits(hits, "wifi router")
	if len(got) != maxContextHits {
		t.Fatalf("expected %d hits, got %d", maxContextHits, len(got))
	}
	if got[0].Source != "b" {
		t.Errorf("expected highest-overlap hit first, got %s", got[0].Source)
	}
	if got[0].Source == "a" || got[1].Source == "a" {
		t.Error("unrelated hit should be filtered out")
	}
}
