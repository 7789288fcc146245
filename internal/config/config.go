package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderGigaChat  = "gigachat"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var ErrMissingCredentials = errors.New("provider credentials are not configured")

type Config struct {
	ServerPort     int           `env:"SERVER_PORT" envDefault:"8080"`
	HTTPAddr       string        `env:"HTTP_ADDR"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	Debug          bool          `env:"DEBUG" envDefault:"false"`
	RequestTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"90s"`
	LLM            LLMConfig
	GigaChat       GigaChatConfig
	OpenAI         OpenAIConfig
	Anthropic      AnthropicConfig
	Estimate       EstimateConfig
}

type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER" envDefault:"gigachat"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	MaxAttempts int           `env:"LLM_MAX_ATTEMPTS" envDefault:"1"`
	RateLimit   float64       `env:"LLM_RATE_LIMIT" envDefault:"0"`
	RateBurst   int           `env:"LLM_RATE_BURST" envDefault:"1"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"2000"`
}

type GigaChatConfig struct {
	// Credentials — base64 от client_id:client_secret.
	Credentials string `env:"GIGACHAT_CREDENTIALS"`
	// APIKey — устаревшее имя той же переменной.
	APIKey    string `env:"GIGACHAT_API_KEY"`
	Model     string `env:"GIGACHAT_MODEL" envDefault:"GigaChat"`
	Scope     string `env:"GIGACHAT_SCOPE" envDefault:"GIGACHAT_API_PERS"`
	AuthURL   string `env:"GIGACHAT_AUTH_URL" envDefault:"https://ngw.devices.sberbank.ru:9443/api/v2/oauth"`
	BaseURL   string `env:"GIGACHAT_BASE_URL" envDefault:"https://gigachat.devices.sberbank.ru/api/v1"`
	VerifySSL bool   `env:"GIGACHAT_VERIFY_SSL" envDefault:"true"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

type AnthropicConfig struct {
	APIKey  string `env:"ANTHROPIC_API_KEY"`
	Model   string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`
	BaseURL string `env:"ANTHROPIC_BASE_URL"`
}

type EstimateConfig struct {
	HoursPerDay  int              `env:"WORK_HOURS_PER_DAY" envDefault:"8"`
	TimeZone     string           `env:"TIMEZONE" envDefault:"Europe/Moscow"`
	RoleRates    map[string]int64 `env:"ROLE_RATES" envSeparator:"," envKeyValSeparator:"="`
	MaxSpecChars int              `env:"MAX_SPEC_CHARS" envDefault:"20000"`
}

// Load читает .env (если есть) и переменные окружения.
func Load() (Config, error) {
	_ = godotenv.Load()

	return Parse()
}

// Parse разбирает конфигурацию только из окружения процесса.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.GigaChat.Credentials == "" {
		cfg.GigaChat.Credentials = cfg.GigaChat.APIKey
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", cfg.ServerPort)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля выбранного провайдера и числовые диапазоны.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGigaChat:
		if c.GigaChat.Credentials == "" {
			return fmt.Errorf("GIGACHAT_CREDENTIALS: %w", ErrMissingCredentials)
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingCredentials)
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY: %w", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER: unknown provider %q", c.LLM.Provider)
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > 5 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be in [1, 5], got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("LLM_RATE_LIMIT must not be negative")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.Estimate.HoursPerDay < 1 || c.Estimate.HoursPerDay > 24 {
		return fmt.Errorf("WORK_HOURS_PER_DAY must be in [1, 24], got %d", c.Estimate.HoursPerDay)
	}
	if c.Estimate.MaxSpecChars <= 0 {
		return fmt.Errorf("MAX_SPEC_CHARS must be positive")
	}
	if _, err := time.LoadLocation(c.Estimate.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Model возвращает модель выбранного провайдера.
func (c Config) Model() string {
	switch c.LLM.Provider {
	case ProviderOpenAI:
		return c.OpenAI.Model
	case ProviderAnthropic:
		return c.Anthropic.Model
	default:
		return c.GigaChat.Model
	}
}
