package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviders_EmbeddedCatalog(t *testing.T) {
	providers, err := Providers()
	require.NoError(t, err)

	var ids []string
	for _, p := range providers {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"groq", "openai", "openrouter", "anthropic", "gemini", "relay"}, ids)
}

func TestLookupProvider(t *testing.T) {
	p, ok := LookupProvider(" GROQ ")
	require.True(t, ok)
	assert.Equal(t, ClientOpenAICompatible, p.Client)
	assert.Equal(t, "https://api.groq.com/openai/v1", p.BaseURL)
	assert.Equal(t, "openai/gpt-oss-120b", p.DefaultModel)
	assert.Equal(t, "GROQ_API_KEY", p.APIKeyEnv)

	relay, ok := LookupProvider("relay")
	require.True(t, ok)
	assert.Empty(t, relay.APIKeyEnv)

	_, ok = LookupProvider("bard")
	assert.False(t, ok)
}

func TestParseProviders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "providers: [", "failed to parse"},
		{"missing id", "providers:\n  - client: relay\n", "has no id"},
		{"duplicate", "providers:\n  - {id: a, client: relay}\n  - {id: a, client: relay}\n", "duplicate provider id"},
		{"unknown client", "providers:\n  - {id: a, client: grpc}\n", "unknown client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProviders([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
