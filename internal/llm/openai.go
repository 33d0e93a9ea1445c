package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// ChatBackend sends one system and one user message per call to any
// OpenAI-compatible chat completion endpoint.
type ChatBackend struct {
	client openai.Client
	model  string
}

// ChatConfig configures a ChatBackend
type ChatConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // empty uses the SDK default
	HTTPClient *http.Client
}

// NewChatBackend creates a chat completion backend
func NewChatBackend(cfg ChatConfig) *ChatBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &ChatBackend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (b *ChatBackend) Name() string {
	return "openai"
}

// Complete implements Backend
func (b *ChatBackend) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoReply
	}
	return resp.Choices[0].Message.Content, nil
}
