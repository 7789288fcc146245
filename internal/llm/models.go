package llm

import "estimator/internal/config"

// ModelInfo описывает модель, доступную у провайдера.
type ModelInfo struct {
	ID          string `json:"id"`          // идентификатор для API
	Name        string `json:"name"`        // короткое название
	Description string `json:"description"` // описание
}

// catalog — известные модели по провайдерам. Список справочный:
// API принимает и модели вне каталога.
var catalog = map[string][]ModelInfo{
	config.ProviderGigaChat: {
		{ID: "GigaChat", Name: "GigaChat Lite", Description: "Базовая модель, быстрая и недорогая"},
		{ID: "GigaChat-Pro", Name: "GigaChat Pro", Description: "Лучше справляется со сложными инструкциями"},
		{ID: "GigaChat-Max", Name: "GigaChat Max", Description: "Флагманская модель Сбера"},
	},
	config.ProviderOpenAI: {
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", Description: "Экономичная модель OpenAI"},
		{ID: "gpt-4o", Name: "GPT-4o", Description: "Флагманская модель OpenAI"},
	},
	config.ProviderAnthropic: {
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Description: "Сбалансированная модель Anthropic"},
		{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", Description: "Быстрая модель Anthropic"},
	},
}

// AvailableModels возвращает каталог провайдера. Текущая модель всегда
// присутствует в списке, даже если её нет в каталоге.
func AvailableModels(provider, current string) []ModelInfo {
	known := catalog[provider]
	out := make([]ModelInfo, 0, len(known)+1)
	out = append(out, known...)
	if current != "" && GetModelByID(provider, current) == nil {
		out = append(out, ModelInfo{ID: current, Name: current})
	}
	return out
}

// GetModelByID возвращает информацию о модели или nil.
func GetModelByID(provider, modelID string) *ModelInfo {
	for _, m := range catalog[provider] {
		if m.ID == modelID {
			return &m
		}
	}
	return nil
}

// GetModelName возвращает короткое название модели; для неизвестных — сам ID.
func GetModelName(provider, modelID string) string {
	if info := GetModelByID(provider, modelID); info != nil {
		return info.Name
	}
	return modelID
}

// TemperatureRange возвращает допустимый диапазон temperature провайдера.
// Messages API Anthropic принимает [0, 1], остальные — [0, 2].
func TemperatureRange(provider string) (lo, hi float64) {
	if provider == config.ProviderAnthropic {
		return 0, 1
	}
	return 0, 2
}
