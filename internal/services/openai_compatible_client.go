// Package services holds the language-model backends used by the tutoring pipeline.
// Every backend implements tutortypes.Backend and reports throttling as *RateLimitedError.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"mathtutor/internal/logger"
	"mathtutor/pkg/tutortypes"
)

// Well-known OpenAI-compatible endpoints.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// DefaultGroqModel is the model the tutor prompts were tuned against.
const DefaultGroqModel = "openai/gpt-oss-120b"

// OpenAICompatibleClient implements tutortypes.Backend for any provider that speaks the
// OpenAI Chat Completions API, such as Groq, OpenAI and OpenRouter.
type OpenAICompatibleClient struct {
	providerName string
	model        string
	baseURL      string
	client       openai.Client
}

// OpenAICompatibleConfig holds configuration for the OpenAI-compatible client.
type OpenAICompatibleConfig struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// NewOpenAICompatibleClient creates a new OpenAI-compatible client.
// If no baseURL is provided, it defaults to Groq's API endpoint.
func NewOpenAICompatibleClient(config OpenAICompatibleConfig) *OpenAICompatibleClient {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = GroqBaseURL
	}

	providerName := config.ProviderName
	if providerName == "" {
		providerName = "openai-compatible"
	}

	model := config.Model
	if model == "" {
		model = DefaultGroqModel
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	// Retries are disabled so throttling reaches the rate-limit guard instead of being hidden.
	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(baseURL+"/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	)

	return &OpenAICompatibleClient{
		providerName: providerName,
		model:        model,
		baseURL:      baseURL,
		client:       client,
	}
}

// Name returns the provider name for this client.
func (c *OpenAICompatibleClient) Name() string {
	return c.providerName
}

// Generate sends the prompt as a system message followed by an empty user turn.
func (c *OpenAICompatibleClient) Generate(ctx context.Context, prompt string, effort tutortypes.ReasoningEffort) (string, error) {
	if err := validateRequest(prompt, effort); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(""),
		},
		Temperature:         openai.Float(1),
		TopP:                openai.Float(1),
		MaxCompletionTokens: openai.Int(8192),
	}
	if effort != tutortypes.EffortUnspecified {
		params.ReasoningEffort = shared.ReasoningEffort(effort)
	}

	logger.Debug("Sending chat completion", "provider", c.providerName, "model", c.model, "effort", effort.String(), "prompt_length", len(prompt))
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.classifyError(err)
	}

	if len(completion.Choices) == 0 {
		logger.Debug("Chat completion returned no choices", "provider", c.providerName)
		return "", nil
	}

	content := completion.Choices[0].Message.Content
	logger.Debug("Chat completion received", "provider", c.providerName, "content_length", len(content))
	return content, nil
}

func (c *OpenAICompatibleClient) classifyError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &BackendError{Provider: c.providerName, Err: err}
	}

	if apiErr.StatusCode == http.StatusTooManyRequests {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		retryAfter := retryAfterFromHeader(header)
		logger.Warn("Provider throttled request", "provider", c.providerName, "retry_after", retryAfter)
		return &RateLimitedError{Provider: c.providerName, RetryAfter: retryAfter}
	}

	body := apiErr.RawJSON()
	if body == "" {
		body = apiErr.Message
	}
	logger.Error("Chat completion failed", "provider", c.providerName, "status", apiErr.StatusCode, "error", body)
	return &BackendError{Provider: c.providerName, StatusCode: apiErr.StatusCode, Body: body, Err: err}
}

func validateRequest(prompt string, effort tutortypes.ReasoningEffort) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if !effort.IsValid() {
		return fmt.Errorf("invalid reasoning effort %q", string(effort))
	}
	return nil
}
