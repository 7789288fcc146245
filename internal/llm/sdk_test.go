package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estimator/internal/apperr"
	"estimator/internal/config"
)

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("unexpected model: %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Привет!"}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1/"},
		Defaults{MaxTokens: 100}, srv.Client(), nil)

	answer, err := Ask(context.Background(), client, "Ты помощник", "Привет", "")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if answer != "Привет!" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestOpenAIRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/v1/"},
		Defaults{MaxTokens: 100}, srv.Client(), logger)

	_, err := Ask(context.Background(), client, "", "Привет", "")
	if !strings.Contains(logs.String(), "status=429") || !strings.Contains(logs.String(), "retryable=true") {
		t.Errorf("expected classified 429 in log, got %s", logs.String())
	}
	if !apperr.Is(err, apperr.KindProviderUnavailable) {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
	if apperr.RetryAfterOf(err).Seconds() != 7 {
		t.Fatalf("expected retry-after 7s, got %s", apperr.RetryAfterOf(err))
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["system"]; !ok {
			t.Errorf("system prompt must be sent as a separate field: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"{\"tasks\":[]}"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	client := NewAnthropicClient(config.AnthropicConfig{APIKey: "key", Model: "claude-sonnet-4-20250514", BaseURL: srv.URL},
		Defaults{MaxTokens: 100}, srv.Client(), nil)

	answer, err := Ask(context.Background(), client, "Только JSON", "Оцени проект", "")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if answer != `{"tasks":[]}` {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestAnthropicUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	client := NewAnthropicClient(config.AnthropicConfig{APIKey: "bad", Model: "claude", BaseURL: srv.URL},
		Defaults{MaxTokens: 100}, srv.Client(), logger)

	_, err := Ask(context.Background(), client, "", "Привет", "")
	if !apperr.Is(err, apperr.KindProviderAuth) {
		t.Fatalf("expected ProviderAuthError, got %v", err)
	}
	out := logs.String()
	for _, want := range []string{"provider rejected request", "op=anthropic.Complete", "status=401", "kind=ProviderAuthError", "retryable=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output misses %q: %s", want, out)
		}
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Config{
		LLM:    config.LLMConfig{Provider: config.ProviderOpenAI, Timeout: time.Second, MaxAttempts: 2, MaxTokens: 10},
		OpenAI: config.OpenAIConfig{APIKey: "k", Model: "gpt-4o"},
	}
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Name() != config.ProviderOpenAI || p.Model() != "gpt-4o" {
		t.Fatalf("unexpected provider: %s/%s", p.Name(), p.Model())
	}

	cfg.LLM.Provider = "yandexgpt"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
