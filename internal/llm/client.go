package llm

import (
	"context"
	"strings"

	"estimator/internal/apperr"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — одно сообщение запроса к модели.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request — запрос на completion. Нулевые поля заменяются настройками провайдера.
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Provider — адаптер LLM-провайдера: prompt → текст ответа.
// Реализации безопасны для параллельного использования и не повторяют
// запросы сами; повторы — политика вызывающего (см. WithRetry).
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// Defaults — параметры генерации по умолчанию.
type Defaults struct {
	Temperature float64
	MaxTokens   int
}

// Ask отправляет одиночный промпт с необязательным системным сообщением.
func Ask(ctx context.Context, p Provider, systemPrompt, prompt, model string) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return p.Complete(ctx, Request{Messages: messages, Model: model})
}

// ValidateMessages проверяет историю сообщений, пришедшую от клиента.
func ValidateMessages(messages []Message) error {
	const op = "llm.ValidateMessages"
	if len(messages) == 0 {
		return apperr.Validation(op, "messages must not be empty")
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return apperr.Validation(op, "messages[%d].role must be system, user or assistant", i)
		}
		if strings.TrimSpace(m.Content) == "" {
			return apperr.Validation(op, "messages[%d].content must not be empty", i)
		}
	}
	if messages[len(messages)-1].Role != RoleUser {
		return apperr.Validation(op, "last message must come from user")
	}
	return nil
}

func (r Request) withDefaults(model string, d Defaults) Request {
	if r.Model == "" {
		r.Model = model
	}
	if r.Temperature == nil {
		t := d.Temperature
		r.Temperature = &t
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = d.MaxTokens
	}
	return r
}

// splitSystem отделяет системные сообщения для API, где system — отдельное поле.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
