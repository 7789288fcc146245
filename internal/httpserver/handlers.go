package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"estimator/internal/apperr"
	"estimator/internal/estimate"
	"estimator/internal/llm"
)

// Estimator — конвейер оценки, см. estimate.Service.
type Estimator interface {
	Estimate(ctx context.Context, req estimate.Request) (estimate.Response, error)
}

type handlers struct {
	provider  llm.Provider
	estimator Estimator
	logger    *slog.Logger
	version   string
}

type infoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Provider  string            `json:"provider"`
	Model     string            `json:"model"`
	ModelName string            `json:"model_name"`
	Endpoints map[string]string `json:"endpoints"`
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, infoResponse{
		Service:   "agent-estimator",
		Version:   h.version,
		Provider:  h.provider.Name(),
		Model:     h.provider.Model(),
		ModelName: llm.GetModelName(h.provider.Name(), h.provider.Model()),
		Endpoints: map[string]string{
			"health":   "GET /api/v1/llm/health",
			"models":   "GET /api/v1/llm/models",
			"ask":      "POST /api/v1/llm/ask",
			"chat":     "POST /api/v1/llm/chat",
			"estimate": "POST /api/v1/llm/estimate",
		},
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Success  bool   `json:"success"`
}

// health не обращается к провайдеру: сервис жив, даже если LLM недоступна.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Provider: h.provider.Name(),
		Model:    h.provider.Model(),
		Success:  true,
	})
}

type modelsResponse struct {
	Provider    string          `json:"provider"`
	Current     string          `json:"current"`
	CurrentName string          `json:"current_name"`
	Models      []llm.ModelInfo `json:"models"`
	Success     bool            `json:"success"`
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, modelsResponse{
		Provider:    h.provider.Name(),
		Current:     h.provider.Model(),
		CurrentName: llm.GetModelName(h.provider.Name(), h.provider.Model()),
		Models:      llm.AvailableModels(h.provider.Name(), h.provider.Model()),
		Success:     true,
	})
}

type askRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type askResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Success  bool   `json:"success"`
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		WriteError(w, r, h.logger, apperr.Validation("httpserver.ask", "prompt must not be empty"))
		return
	}

	answer, err := llm.Ask(r.Context(), h.provider, "", req.Prompt, req.Model)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, askResponse{Model: h.modelFor(req.Model), Response: answer, Success: true})
}

type chatRequest struct {
	Message     string        `json:"message,omitempty"`
	Messages    []llm.Message `json:"messages,omitempty"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Reply   string `json:"reply"`
	Success bool   `json:"success"`
}

// chat — прямой вызов модели без промпта оценки. История не сохраняется.
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	const op = "httpserver.chat"

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	messages := req.Messages
	if len(messages) == 0 {
		if strings.TrimSpace(req.Message) == "" {
			WriteError(w, r, h.logger, apperr.Validation(op, "message or messages is required"))
			return
		}
		messages = []llm.Message{{Role: llm.RoleUser, Content: req.Message}}
	}
	if err := llm.ValidateMessages(messages); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if req.Temperature != nil {
		lo, hi := llm.TemperatureRange(h.provider.Name())
		if *req.Temperature < lo || *req.Temperature > hi {
			WriteError(w, r, h.logger, apperr.Validation(op, "temperature must be within [%g, %g] for %s", lo, hi, h.provider.Name()))
			return
		}
	}
	if req.MaxTokens < 0 {
		WriteError(w, r, h.logger, apperr.Validation(op, "max_tokens must not be negative"))
		return
	}

	reply, err := h.provider.Complete(r.Context(), llm.Request{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, chatResponse{Model: h.modelFor(req.Model), Reply: reply, Success: true})
}

func (h *handlers) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimate.Request
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	resp, err := h.estimator.Estimate(r.Context(), req)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) modelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return h.provider.Model()
}
