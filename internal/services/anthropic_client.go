package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mathtutor/internal/logger"
	"mathtutor/pkg/tutortypes"
)

// DefaultAnthropicModel is used when no model is configured for the anthropic provider.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// anthropicKickoff is sent as the user turn because the Messages API rejects empty content.
const anthropicKickoff = "Begin."

// AnthropicClient implements tutortypes.Backend using the Anthropic Messages API.
// Reasoning effort hints are accepted but not forwarded.
type AnthropicClient struct {
	model  string
	client anthropic.Client
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewAnthropicClient creates a new Anthropic client with SDK retries disabled.
func NewAnthropicClient(config AnthropicConfig) *AnthropicClient {
	model := config.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}

	return &AnthropicClient{
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the provider name for this client.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Generate sends the prompt as the system block and returns the concatenated text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, effort tutortypes.ReasoningEffort) (string, error) {
	if err := validateRequest(prompt, effort); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 8192,
		System:    []anthropic.TextBlockParam{{Text: prompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(anthropicKickoff)),
		},
	}

	logger.Debug("Sending Anthropic request", "model", c.model, "prompt_length", len(prompt))
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.classifyError(err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	logger.Debug("Anthropic response received", "content_length", content.Len())
	return content.String(), nil
}

func (c *AnthropicClient) classifyError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &BackendError{Provider: c.Name(), Err: err}
	}

	if apiErr.StatusCode == http.StatusTooManyRequests {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		retryAfter := retryAfterFromHeader(header)
		logger.Warn("Provider throttled request", "provider", c.Name(), "retry_after", retryAfter)
		return &RateLimitedError{Provider: c.Name(), RetryAfter: retryAfter}
	}

	logger.Error("Anthropic request failed", "status", apiErr.StatusCode, "error", apiErr.RawJSON())
	return &BackendError{Provider: c.Name(), StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON(), Err: err}
}
