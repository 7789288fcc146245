package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"estimator/internal/apperr"
	"estimator/internal/config"
	"estimator/internal/retry"
)

type GigaChatClient struct {
	baseURL    string
	model      string
	defaults   Defaults
	tokens     *gigaChatTokenSource
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewGigaChatClient(cfg config.GigaChatConfig, defaults Defaults, httpClient *http.Client, logger *slog.Logger) *GigaChatClient {
	return &GigaChatClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		defaults:   defaults,
		tokens:     newGigaChatTokenSource(cfg.AuthURL, cfg.Credentials, cfg.Scope, httpClient),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *GigaChatClient) Name() string  { return config.ProviderGigaChat }
func (c *GigaChatClient) Model() string { return c.model }

// Complete выполняет один запрос к chat/completions. При 401 токен
// сбрасывается и запрос повторяется ровно один раз с новым токеном.
func (c *GigaChatClient) Complete(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults(c.model, c.defaults)

	body := gigaChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: *req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "gigachat.Complete", fmt.Errorf("marshal request: %w", err))
	}

	answer, err := c.doRequest(ctx, buf)
	if apperr.Is(err, apperr.KindProviderAuth) && errors.Is(err, errChatUnauthorized) {
		if c.logger != nil {
			c.logger.Info("gigachat token rejected, re-authenticating")
		}
		c.tokens.Invalidate()
		answer, err = c.doRequest(ctx, buf)
	}
	return answer, err
}

var errChatUnauthorized = errors.New("access token rejected")

func (c *GigaChatClient) doRequest(ctx context.Context, payload []byte) (string, error) {
	const op = "gigachat.Complete"

	token, err := c.tokens.TokenContext(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.FromTransport(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", apperr.FromTransport(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &apperr.Error{Kind: apperr.KindProviderAuth, Op: op, Message: "provider rejected credentials", Err: errChatUnauthorized}
	}
	if resp.StatusCode >= 300 {
		retryAfter, _ := retry.ParseRetryAfter(resp.Header, c.now())
		return "", apperr.FromStatus(op, resp.StatusCode, string(bodyBytes), retryAfter)
	}

	var parsed gigaChatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", &apperr.Error{Kind: apperr.KindParse, Op: op, Message: "malformed provider response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.New(apperr.KindParse, op, "provider response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", apperr.New(apperr.KindParse, op, "empty response from model")
	}
	return content, nil
}

type gigaChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}
