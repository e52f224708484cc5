// Package server exposes the tutor over HTTP: a relay endpoint that forwards a single
// prompt to the configured provider, a conversation API that runs tutoring turns, and a
// websocket that streams pipeline status.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"mathtutor/internal/logger"
	"mathtutor/internal/pipeline"
	"mathtutor/pkg/tutortypes"
)

// Options selects which APIs the server mounts. Nil components leave their routes out.
type Options struct {
	Addr string
	// Relay is the provider backend behind POST /api/send-message.
	Relay tutortypes.Backend
	// Orchestrator runs turns for the conversation API and the status websocket.
	Orchestrator *pipeline.Orchestrator
	// AllowedOrigins restricts websocket origins; empty allows any.
	AllowedOrigins []string
}

// Server is the tutor HTTP server.
type Server struct {
	opts   Options
	router chi.Router
	logger *log.Logger
}

// New builds the router for opts.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
		logger: logger.NewStyledLogger("Server"),
	}

	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chiMiddleware.Recoverer)
	s.router.Use(chiMiddleware.Heartbeat("/health"))

	if opts.Relay != nil {
		NewRelayHandler(opts.Relay).RegisterRoutes(s.router)
	}
	if opts.Orchestrator != nil {
		NewTutorHandler(opts.Orchestrator).RegisterRoutes(s.router)
		NewStatusHandler(opts.Orchestrator, opts.AllowedOrigins).RegisterRoutes(s.router)
	}
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// Turns can take several provider round trips and the websocket is long-lived.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", s.opts.Addr, "relay", s.opts.Relay != nil, "tutor", s.opts.Orchestrator != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestLogger logs one line per request through the component logger.
func requestLogger(l *log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			l.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}
