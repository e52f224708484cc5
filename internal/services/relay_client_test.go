package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/pkg/tutortypes"
)

func TestRelayClient_Generate(t *testing.T) {
	var received SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SendMessagePath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.UserAgent(), "mathtutor/"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte("TYPE: PROBLEM\nPHASE: 1"))
	}))
	defer server.Close()

	client := NewRelayClient(server.URL+"/", time.Second)
	out, err := client.Generate(context.Background(), "plan this", tutortypes.EffortMedium)
	require.NoError(t, err)
	assert.Equal(t, "TYPE: PROBLEM\nPHASE: 1", out)
	assert.Equal(t, "plan this", received.SystemPrompt)
	require.NotNil(t, received.ReasoningEffort)
	assert.Equal(t, "medium", *received.ReasoningEffort)
}

func TestRelayClient_UnspecifiedEffortIsNull(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	out, err := NewRelayClient(server.URL, time.Second).Generate(context.Background(), "p", tutortypes.EffortUnspecified)
	require.NoError(t, err)
	assert.Empty(t, out)
	value, present := raw["reasoning_effort"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestRelayClient_RateLimited(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		body     string
		expected time.Duration
	}{
		{"string hint in body", "", `{"error":"rate_limited","retryAfter":"30"}`, 30 * time.Second},
		{"numeric hint in body", "", `{"error":"rate_limited","retryAfter":15}`, 15 * time.Second},
		{"garbage hint in body", "", `{"error":"rate_limited","retryAfter":"tomorrow"}`, DefaultRetryAfter},
		{"header fallback", "8", `not json`, 8 * time.Second},
		{"nothing usable", "", ``, DefaultRetryAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewRelayClient(server.URL, time.Second).Generate(context.Background(), "p", tutortypes.EffortMedium)
			rl, ok := AsRateLimited(err)
			require.True(t, ok)
			assert.Equal(t, tt.expected, rl.RetryAfter)
		})
	}
}

func TestRelayClient_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := NewRelayClient(server.URL, time.Second).Generate(context.Background(), "p", tutortypes.EffortMedium)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusBadGateway, backendErr.StatusCode)
	assert.Equal(t, "upstream exploded", backendErr.Body)
}

func TestRelayClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRelayClient(url, time.Second).Generate(context.Background(), "p", tutortypes.EffortMedium)
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Zero(t, backendErr.StatusCode)
}
