package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"mathtutor/internal/logger"
	"mathtutor/internal/pipeline"
)

const statusWriteTimeout = 5 * time.Second

// StatusHandler streams pipeline status events to websocket clients.
type StatusHandler struct {
	orch           *pipeline.Orchestrator
	allowedOrigins []string
	logger         *log.Logger
}

// NewStatusHandler creates a status websocket handler.
func NewStatusHandler(orch *pipeline.Orchestrator, allowedOrigins []string) *StatusHandler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &StatusHandler{
		orch:           orch,
		allowedOrigins: allowedOrigins,
		logger:         logger.NewStyledLogger("StatusWS"),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status/ws", h.ServeHTTP)
}

// ServeHTTP upgrades the connection and forwards status events until either side closes.
// Client messages are ignored.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.logger.Error("Failed to accept websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx := ws.CloseRead(r.Context())
	events, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	h.logger.Debug("Status subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Status subscriber disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(ctx, ws, ev); err != nil {
				h.logger.Debug("Status write failed", "error", err)
				return
			}
		}
	}
}

func (h *StatusHandler) write(ctx context.Context, ws *websocket.Conn, ev pipeline.StatusEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, ws, ev)
}
