package llm

import (
	"fmt"
	"log/slog"

	"estimator/internal/config"
	"estimator/internal/retry"
	"estimator/internal/transport"
)

// New собирает провайдера, выбранного в конфигурации, со всеми декораторами:
// logging → timeout → retry → rate limit → адаптер.
func New(cfg config.Config, logger *slog.Logger) (Provider, error) {
	defaults := Defaults{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}

	var base Provider
	switch cfg.LLM.Provider {
	case config.ProviderGigaChat:
		httpClient := transport.NewHTTPClient(cfg.RequestTimeout, transport.WithInsecureTLS(!cfg.GigaChat.VerifySSL))
		base = NewGigaChatClient(cfg.GigaChat, defaults, httpClient, logger)
	case config.ProviderOpenAI:
		base = NewOpenAIClient(cfg.OpenAI, defaults, transport.NewHTTPClient(cfg.RequestTimeout), logger)
	case config.ProviderAnthropic:
		base = NewAnthropicClient(cfg.Anthropic, defaults, transport.NewHTTPClient(cfg.RequestTimeout), logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.LLM.MaxAttempts

	return Wrap(base, cfg.LLM, policy, logger), nil
}

// Wrap навешивает стандартный набор декораторов на готовый адаптер.
func Wrap(base Provider, cfg config.LLMConfig, policy retry.Policy, logger *slog.Logger) Provider {
	return Chain(base,
		WithLogging(logger),
		WithTimeout(cfg.Timeout),
		WithRetry(policy, logger),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
}
