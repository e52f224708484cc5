package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"

	"mathtutor/internal/logger"
	"mathtutor/pkg/tutortypes"
)

// DefaultGeminiModel is used when no model is configured for the gemini provider.
const DefaultGeminiModel = "gemini-2.5-flash"

// geminiKickoff is the user turn that accompanies the system instruction.
const geminiKickoff = "Begin."

// GeminiClient implements tutortypes.Backend using Google's genai SDK.
// The underlying client is created lazily on the first request.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	once    sync.Once
	client  *genai.Client
	initErr error
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(config GeminiConfig) *GeminiClient {
	model := config.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	return &GeminiClient{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		model:      model,
		httpClient: httpClient,
	}
}

// Name returns the provider name for this client.
func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) initializeClient(ctx context.Context) error {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.initErr = fmt.Errorf("google API key not configured")
			return
		}

		clientConfig := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.httpClient,
		}
		if c.baseURL != "" {
			clientConfig.HTTPOptions.BaseURL = c.baseURL
		}

		client, err := genai.NewClient(ctx, clientConfig)
		if err != nil {
			c.initErr = fmt.Errorf("failed to create Gemini client: %w", err)
			return
		}
		c.client = client
		logger.Debug("Gemini client initialized", "model", c.model)
	})
	return c.initErr
}

// Generate sends the prompt as the system instruction. Reasoning effort maps onto a thinking budget.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, effort tutortypes.ReasoningEffort) (string, error) {
	if err := validateRequest(prompt, effort); err != nil {
		return "", err
	}
	if err := c.initializeClient(ctx); err != nil {
		return "", &BackendError{Provider: c.Name(), Err: err}
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt, genai.RoleUser),
		ThinkingConfig:    geminiThinkingConfig(effort),
	}

	logger.Debug("Sending Gemini request", "model", c.model, "effort", effort.String(), "prompt_length", len(prompt))
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(geminiKickoff), config)
	if err != nil {
		return "", c.classifyError(err)
	}

	content := result.Text()
	logger.Debug("Gemini response received", "content_length", len(content))
	return content, nil
}

// geminiThinkingConfig maps reasoning effort onto Gemini thinking budgets.
// nil leaves the decision to the model.
func geminiThinkingConfig(effort tutortypes.ReasoningEffort) *genai.ThinkingConfig {
	var budget int32
	switch effort {
	case tutortypes.EffortNone:
		budget = 0
	case tutortypes.EffortLow:
		budget = 1024
	case tutortypes.EffortMedium:
		budget = 4096
	case tutortypes.EffortHigh:
		budget = 16384
	default:
		return nil
	}
	return &genai.ThinkingConfig{ThinkingBudget: &budget}
}

func (c *GeminiClient) classifyError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return &BackendError{Provider: c.Name(), Err: err}
	}

	if apiErr.Code == http.StatusTooManyRequests {
		retryAfter := geminiRetryDelay(apiErr)
		logger.Warn("Provider throttled request", "provider", c.Name(), "retry_after", retryAfter)
		return &RateLimitedError{Provider: c.Name(), RetryAfter: retryAfter}
	}

	logger.Error("Gemini request failed", "status", apiErr.Code, "error", apiErr.Message)
	return &BackendError{Provider: c.Name(), StatusCode: apiErr.Code, Body: apiErr.Message, Err: err}
}

// geminiRetryDelay finds the google.rpc.RetryInfo detail, whose retryDelay looks like "37s".
func geminiRetryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		if delay, ok := detail["retryDelay"]; ok {
			return ParseRetryAfter(delay)
		}
	}
	return DefaultRetryAfter
}
