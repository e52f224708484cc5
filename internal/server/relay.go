package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"mathtutor/internal/logger"
	"mathtutor/internal/services"
	"mathtutor/pkg/tutortypes"
)

// maxRequestBody caps the request size; prompts embed the whole conversation.
const maxRequestBody = 1 << 20

// RelayHandler forwards single prompts to a provider backend so clients never hold API keys.
type RelayHandler struct {
	backend tutortypes.Backend
	logger  *log.Logger
}

// NewRelayHandler creates a relay handler for backend.
func NewRelayHandler(backend tutortypes.Backend) *RelayHandler {
	return &RelayHandler{
		backend: backend,
		logger:  logger.NewStyledLogger("Relay"),
	}
}

// RegisterRoutes mounts the relay endpoint.
func (h *RelayHandler) RegisterRoutes(r chi.Router) {
	r.Post(services.SendMessagePath, h.SendMessage)
}

// SendMessage handles POST /api/send-message.
// 200 carries the generated text as text/plain. Throttling maps to 429 with a retry hint,
// any other provider failure to 502 carrying the provider's raw error body.
func (h *RelayHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.SendMessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		writeError(w, http.StatusBadRequest, "systemPrompt is required")
		return
	}

	effort := tutortypes.EffortUnspecified
	if req.ReasoningEffort != nil {
		parsed, err := tutortypes.ParseReasoningEffort(*req.ReasoningEffort)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		effort = parsed
	}

	text, err := h.backend.Generate(r.Context(), req.SystemPrompt, effort)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Debug("Failed to write relay response", "error", err)
	}
}

func (h *RelayHandler) writeBackendError(w http.ResponseWriter, err error) {
	if rl, ok := services.AsRateLimited(err); ok {
		secs := strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds())))
		h.logger.Warn("Provider throttled relay request", "retry_after", secs)
		w.Header().Set("Retry-After", secs)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":      "rate_limited",
			"retryAfter": secs,
		})
		return
	}

	body := err.Error()
	var be *services.BackendError
	if errors.As(err, &be) && be.Body != "" {
		body = be.Body
	}
	h.logger.Error("Relay request failed", "error", err)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(body))
}
