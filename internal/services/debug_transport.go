package services

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mathtutor/internal/logger"
)

// maxLoggedBody caps how much of each request and response body is logged.
const maxLoggedBody = 4096

// DebugTransport logs every provider exchange at debug level. Credentials are masked and
// bodies are restored so the client still sees them.
type DebugTransport struct {
	base   http.RoundTripper
	logger *log.Logger
}

// NewDebugTransport wraps base, or http.DefaultTransport when base is nil.
func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{
		base:   base,
		logger: logger.NewStyledLogger("HTTP"),
	}
}

// RoundTrip implements http.RoundTripper.
func (dt *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqBody, err := drainBody(&req.Body)
	if err != nil {
		dt.logger.Error("Failed to capture request body", "error", err)
	}
	dt.logger.Debug("Request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", sanitizeHeaders(req.Header),
		"body", truncateBody(reqBody),
	)

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		dt.logger.Debug("Request failed", "url", req.URL.String(), "duration", time.Since(start), "error", err)
		return resp, err
	}

	respBody, captureErr := drainBody(&resp.Body)
	if captureErr != nil {
		dt.logger.Error("Failed to capture response body", "error", captureErr)
	}
	dt.logger.Debug("Response",
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"headers", sanitizeHeaders(resp.Header),
		"body", truncateBody(respBody),
	)
	return resp, nil
}

// drainBody reads *body fully and replaces it with an in-memory copy.
func drainBody(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(*body)
	_ = (*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))
	return data, err
}

func truncateBody(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...[truncated]"
	}
	return string(b)
}

// sanitizeHeaders masks anything that looks like a credential.
func sanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for name, values := range headers {
		value := strings.Join(values, ", ")
		lower := strings.ToLower(name)
		if strings.Contains(lower, "authorization") || strings.Contains(lower, "api-key") || strings.Contains(lower, "token") {
			if len(value) > 10 {
				value = value[:10] + "***[MASKED]***"
			} else {
				value = "***[MASKED]***"
			}
		}
		sanitized[name] = value
	}
	return sanitized
}

// newHTTPClient returns the client every backend uses. At debug level traffic goes through
// DebugTransport.
func newHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if logger.IsDebug() {
		client.Transport = NewDebugTransport(nil)
	}
	return client
}
