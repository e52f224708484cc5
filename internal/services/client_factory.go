package services

import (
	"fmt"

	"mathtutor/internal/config"
	"mathtutor/pkg/tutortypes"
)

// NewBackend builds the backend for cfg.Provider. Endpoint and model fall back to the
// provider catalog defaults.
func NewBackend(cfg *config.Config) (tutortypes.Backend, error) {
	provider, ok := config.LookupProvider(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	model := firstNonEmpty(cfg.Model, provider.DefaultModel)

	switch provider.Client {
	case config.ClientOpenAICompatible:
		return NewOpenAICompatibleClient(OpenAICompatibleConfig{
			ProviderName: provider.ID,
			APIKey:       cfg.APIKey,
			BaseURL:      firstNonEmpty(cfg.BaseURL, provider.BaseURL),
			Model:        model,
			Timeout:      cfg.RequestTimeout,
		}), nil
	case config.ClientAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: firstNonEmpty(cfg.BaseURL, provider.BaseURL),
			Model:   model,
			Timeout: cfg.RequestTimeout,
		}), nil
	case config.ClientGemini:
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: firstNonEmpty(cfg.BaseURL, provider.BaseURL),
			Model:   model,
			Timeout: cfg.RequestTimeout,
		}), nil
	case config.ClientRelay:
		return NewRelayClient(firstNonEmpty(cfg.BaseURL, cfg.RelayURL), cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("provider %s uses unsupported client %s", provider.ID, provider.Client)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
