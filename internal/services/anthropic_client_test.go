package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/pkg/tutortypes"
)

func newTestAnthropicClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewAnthropicClient(AnthropicConfig{
		APIKey:  "sk-ant-test",
		BaseURL: server.URL,
		Model:   "claude-test",
		Timeout: 5 * time.Second,
	})
}

func TestAnthropicClient_Generate(t *testing.T) {
	var captured map[string]interface{}
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"First part. "},{"type":"text","text":"Second part."}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	})

	out, err := client.Generate(context.Background(), "RESPONSE PROMPT", tutortypes.EffortMedium)
	require.NoError(t, err)
	assert.Equal(t, "First part. Second part.", out)

	assert.Equal(t, "claude-test", captured["model"])
	system, ok := captured["system"].([]interface{})
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "RESPONSE PROMPT", system[0].(map[string]interface{})["text"])
}

func TestAnthropicClient_RateLimited(t *testing.T) {
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := client.Generate(context.Background(), "prompt", tutortypes.EffortMedium)
	rl, ok := AsRateLimited(err)
	require.True(t, ok, "expected RateLimitedError, got %v", err)
	assert.Equal(t, 12*time.Second, rl.RetryAfter)
	assert.Equal(t, "anthropic", rl.Provider)
}

func TestAnthropicClient_BackendError(t *testing.T) {
	client := newTestAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	_, err := client.Generate(context.Background(), "prompt", tutortypes.EffortMedium)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
}

func TestNewAnthropicClient_Defaults(t *testing.T) {
	client := NewAnthropicClient(AnthropicConfig{APIKey: "k"})
	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, DefaultAnthropicModel, client.model)
}
