package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

type AnthropicConfig struct {
	APIKey   string
	Model    string
	BaseURL  string // tests only
	Attempts int    // default 2
}

// Anthropic calls the Messages API.
type Anthropic struct {
	client   *anthropic.Client
	model    string
	attempts int
}

func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 2
	}

	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, model: model, attempts: attempts}, nil
}

func (c *Anthropic) Model() string {
	return c.model
}

func (c *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  anthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	var message *anthropic.Message
	err := withRetry(ctx, "anthropic", c.attempts, func() error {
		m, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return mapAnthropicError(err)
		}
		message = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			return &Response{
				Content:      block.Text,
				PromptTokens: int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
			}, nil
		}
	}
	return nil, &ErrInvalidResponse{Err: errors.New("no text content in anthropic response")}
}

func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.StatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
