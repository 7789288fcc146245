package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"estimator/internal/apperr"
	"estimator/internal/config"
	"estimator/internal/retry"
)

// OpenAIClient — адаптер OpenAI-совместимого chat/completions API.
type OpenAIClient struct {
	client   openai.Client
	model    string
	defaults Defaults
	logger   *slog.Logger
}

func NewOpenAIClient(cfg config.OpenAIConfig, defaults Defaults, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Повторами управляет WithRetry.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		defaults: defaults,
		logger:   logger,
	}
}

func (c *OpenAIClient) Name() string  { return config.ProviderOpenAI }
func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "openai.Complete"
	req = req.withDefaults(c.model, c.defaults)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	params.Temperature = openai.Float(*req.Temperature)
	params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifySDKError(c.logger, op, err)
	}
	if len(completion.Choices) == 0 {
		return "", apperr.New(apperr.KindParse, op, "provider response has no choices")
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", apperr.New(apperr.KindParse, op, "empty response from model")
	}
	return content, nil
}

// classifySDKError переводит ошибки SDK (openai, anthropic) в виды apperr.
// HTTP-ответы с ошибкой пишутся в лог со статусом, которого нет в apperr.
func classifySDKError(logger *slog.Logger, op string, err error) error {
	var (
		status     int
		retryAfter time.Duration
	)
	var oaErr *openai.Error
	var anErr *anthropicError
	switch {
	case errors.As(err, &oaErr):
		status, retryAfter = oaErr.StatusCode, retryAfterFromResponse(oaErr.Response)
	case errors.As(err, &anErr):
		status, retryAfter = anErr.StatusCode, retryAfterFromResponse(anErr.Response)
	default:
		return apperr.FromTransport(op, err)
	}

	classified := apperr.FromStatus(op, status, err.Error(), retryAfter)
	if logger != nil {
		logger.Warn("provider rejected request",
			slog.String("op", op),
			slog.Int("status", status),
			slog.String("kind", string(apperr.KindOf(classified))),
			slog.Bool("retryable", apperr.Retryable(classified)),
		)
	}
	return classified
}

func retryAfterFromResponse(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	d, _ := retry.ParseRetryAfter(resp.Header, time.Now())
	return d
}
