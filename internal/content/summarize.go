package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"notary/internal/config"
)

const summaryInputRunes = 6000

// Summarizer condenses document text. Implementations may return an empty
// summary; callers treat errors as "no summary".
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Noop never summarizes.
type Noop struct{}

func (Noop) Summarize(context.Context, string) (string, error) { return "", nil }

// OpenAISummarizer asks a chat completion model for a short bullet list.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// NewSummarizer returns an OpenAI summarizer, or Noop when no API key is set.
func NewSummarizer(cfg config.OpenAIConfig) Summarizer {
	if cfg.APIKey == "" {
		return Noop{}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAISummarizer{client: openai.NewClientWithConfig(oc), model: model}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: "Summarize in <=5 bullet points:\n\n" + Truncate(text, summaryInputRunes),
		}},
		Temperature: 0.2,
		MaxTokens:   220,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
