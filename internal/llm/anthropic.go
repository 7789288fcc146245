package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"estimator/internal/apperr"
	"estimator/internal/config"
)

type anthropicError = anthropic.Error

// AnthropicClient — адаптер Messages API.
type AnthropicClient struct {
	client   anthropic.Client
	model    string
	defaults Defaults
	logger   *slog.Logger
}

func NewAnthropicClient(cfg config.AnthropicConfig, defaults Defaults, httpClient *http.Client, logger *slog.Logger) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client:   anthropic.NewClient(opts...),
		model:    cfg.Model,
		defaults: defaults,
		logger:   logger,
	}
}

func (c *AnthropicClient) Name() string  { return config.ProviderAnthropic }
func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "anthropic.Complete"
	req = req.withDefaults(c.model, c.defaults)

	system, rest := splitSystem(req.Messages)
	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(*req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifySDKError(c.logger, op, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", apperr.New(apperr.KindParse, op, "empty response from model")
	}
	return b.String(), nil
}
