package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // siliconflow, openai, local; empty = auto-detect
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// New creates a provider from cfg.
// With an empty Provider the choice follows DetectProvider.
func New(cfg Config) (Provider, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider(cfg.APIKey)
	}

	switch provider {
	case ProviderSiliconFlow:
		return NewSiliconFlowProvider(cfg)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on the
// configured key and the current environment.
// Priority:
// 1. an explicit API key or SILICONFLOW_API_KEY selects siliconflow
// 2. OPENAI_API_KEY selects openai
// 3. otherwise local
func DetectProvider(apiKey string) string {
	if apiKey != "" || os.Getenv(EnvSiliconFlowAPIKey) != "" {
		return ProviderSiliconFlow
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
