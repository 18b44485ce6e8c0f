package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider   string // jina, openai, local; empty auto-detects
	APIKey     string // explicit key for the selected provider
	JinaAPIKey string
	OpenAIKey  string
	BaseURL    string
	Model      string
	ChatModel  string
	Dimension  int // local provider dimension

	// RequestsPerSecond enables client-side throttling when positive
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// New creates a provider from configuration
func New(cfg Config) (Provider, error) {
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond > 0 {
		return NewRateLimitedProvider(p, cfg.RequestsPerSecond, cfg.Burst), nil
	}
	return p, nil
}

func newProvider(cfg Config) (Provider, error) {
	switch name := DetectProvider(cfg); name {
	case ProviderJina:
		key := firstNonEmpty(cfg.APIKey, cfg.JinaAPIKey)
		baseURL := firstNonEmpty(cfg.BaseURL, JinaBaseURL)
		return NewOpenAIProvider(OpenAIConfig{
			Name:    ProviderJina,
			APIKey:  key,
			BaseURL: baseURL,
			Model:   firstNonEmpty(cfg.Model, DefaultJinaModel),
			Timeout: cfg.Timeout,
		})
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:    firstNonEmpty(cfg.APIKey, cfg.OpenAIKey),
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			ChatModel: cfg.ChatModel,
			Timeout:   cfg.Timeout,
		})
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that New would construct.
// Priority:
// 1. explicit Provider
// 2. available API keys: Jina, then OpenAI
// 3. local
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
