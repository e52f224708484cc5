package config

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mathtutor/internal/data/embedded"
)

// Provider client kinds.
const (
	ClientOpenAICompatible = "openai-compatible"
	ClientAnthropic        = "anthropic"
	ClientGemini           = "gemini"
	ClientRelay            = "relay"
)

// Provider describes one entry of the embedded provider catalog.
type Provider struct {
	ID           string `yaml:"id"`
	DisplayName  string `yaml:"display_name"`
	Client       string `yaml:"client"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	// APIKeyEnv is empty for providers that need no key.
	APIKeyEnv string `yaml:"api_key_env"`
}

type providerCatalog struct {
	Providers []Provider `yaml:"providers"`
}

var (
	catalogOnce sync.Once
	catalog     []Provider
	catalogErr  error
)

// Providers returns the provider catalog in declaration order.
func Providers() ([]Provider, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseProviders(embedded.ProvidersData)
	})
	return catalog, catalogErr
}

// LookupProvider finds a provider by ID, case-insensitively.
func LookupProvider(id string) (Provider, bool) {
	providers, err := Providers()
	if err != nil {
		return Provider{}, false
	}
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

func parseProviders(data []byte) ([]Provider, error) {
	var c providerCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true

		switch p.Client {
		case ClientOpenAICompatible, ClientAnthropic, ClientGemini, ClientRelay:
		default:
			return nil, fmt.Errorf("provider %q has unknown client %q", p.ID, p.Client)
		}
	}
	return c.Providers, nil
}
