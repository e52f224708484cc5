package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"mathtutor/internal/logger"
	"mathtutor/internal/pipeline"
	"mathtutor/pkg/tutortypes"
)

// TutorHandler exposes the conversation and turn entry point.
type TutorHandler struct {
	orch   *pipeline.Orchestrator
	logger *log.Logger
}

// NewTutorHandler creates a handler around orch.
func NewTutorHandler(orch *pipeline.Orchestrator) *TutorHandler {
	return &TutorHandler{
		orch:   orch,
		logger: logger.NewStyledLogger("TutorAPI"),
	}
}

// RegisterRoutes mounts the conversation API.
func (h *TutorHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", h.PostMessage)
		r.Get("/conversation", h.GetConversation)
		r.Delete("/conversation", h.DeleteConversation)
	})
}

type postMessageRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	TurnID   string               `json:"turnId"`
	Outcome  pipeline.Outcome     `json:"outcome"`
	Attempts int                  `json:"attempts"`
	Reply    string               `json:"reply"`
	Messages []tutortypes.Message `json:"messages"`
}

type conversationResponse struct {
	Messages         []tutortypes.Message `json:"messages"`
	RateLimitedUntil int64                `json:"rateLimitedUntil"`
	RateLimited      bool                 `json:"rateLimited"`
	Status           tutortypes.Status    `json:"status"`
}

// PostMessage runs one tutoring turn for the posted text and returns its outcome.
func (h *TutorHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := h.orch.Submit(r.Context(), req.Text)
	if errors.Is(err, pipeline.ErrTurnInProgress) {
		writeError(w, http.StatusConflict, "turn_in_progress")
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{
		TurnID:   outcome.TurnID,
		Outcome:  outcome.Outcome,
		Attempts: outcome.Attempts,
		Reply:    outcome.Reply,
		Messages: h.orch.Store().Messages(),
	})
}

// GetConversation returns the persisted conversation plus the cool-down state.
func (h *TutorHandler) GetConversation(w http.ResponseWriter, _ *http.Request) {
	conv := h.orch.Store().Snapshot()
	resp := conversationResponse{
		Messages:    conv.Messages,
		RateLimited: h.orch.Guard().IsLimited(),
		Status:      h.orch.Status().Status,
	}
	if !conv.RateLimitedUntil.IsZero() {
		resp.RateLimitedUntil = conv.RateLimitedUntil.UnixMilli()
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteConversation clears the conversation. Refused while a turn is running.
func (h *TutorHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if h.orch.Busy() {
		writeError(w, http.StatusConflict, "turn_in_progress")
		return
	}
	h.orch.Store().Reset(r.Context())
	h.logger.Info("Conversation reset via API")
	w.WriteHeader(http.StatusNoContent)
}
