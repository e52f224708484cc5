package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mathtutor/internal/logger"
	"mathtutor/internal/version"
	"mathtutor/pkg/tutortypes"
)

// SendMessagePath is the relay endpoint that forwards a single prompt to the real provider.
const SendMessagePath = "/api/send-message"

// SendMessageRequest is the relay request body.
// ReasoningEffort is null when no hint should be sent.
type SendMessageRequest struct {
	SystemPrompt    string  `json:"systemPrompt"`
	ReasoningEffort *string `json:"reasoning_effort"`
}

// RateLimitedBody is the JSON body of a 429 relay response.
// RetryAfter is decoded loosely because relays send it as a number or a string.
type RateLimitedBody struct {
	Error      string      `json:"error"`
	RetryAfter interface{} `json:"retryAfter"`
}

// RelayClient implements tutortypes.Backend by calling a tutor relay over HTTP.
// The relay holds the provider credentials; this client only needs its URL.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayClient creates a relay client. A zero timeout defaults to 60 seconds.
func NewRelayClient(baseURL string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RelayClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

// Name returns the provider name for this client.
func (c *RelayClient) Name() string {
	return "relay"
}

// Generate posts the prompt to the relay and returns the plain-text body.
func (c *RelayClient) Generate(ctx context.Context, prompt string, effort tutortypes.ReasoningEffort) (string, error) {
	if err := validateRequest(prompt, effort); err != nil {
		return "", err
	}

	payload := SendMessageRequest{SystemPrompt: prompt}
	if effort != tutortypes.EffortUnspecified {
		e := string(effort)
		payload.ReasoningEffort = &e
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SendMessagePath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &BackendError{Provider: c.Name(), Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Provider: c.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := relayRetryAfter(resp.Header, body)
		logger.Warn("Relay throttled request", "retry_after", retryAfter)
		return "", &RateLimitedError{Provider: c.Name(), RetryAfter: retryAfter}
	case resp.StatusCode != http.StatusOK:
		logger.Error("Relay request failed", "status", resp.StatusCode, "error", string(body))
		return "", &BackendError{Provider: c.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	logger.Debug("Relay response received", "content_length", len(body))
	return string(body), nil
}

// relayRetryAfter prefers the JSON body hint and falls back to the Retry-After header.
func relayRetryAfter(header http.Header, body []byte) time.Duration {
	var limited RateLimitedBody
	if err := json.Unmarshal(body, &limited); err == nil && limited.RetryAfter != nil {
		return ParseRetryAfter(limited.RetryAfter)
	}
	return retryAfterFromHeader(header)
}
