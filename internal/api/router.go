package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/ping", s.handlePing)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/command", s.handleCommand)
				r.Get("/history", s.handleStateHistory)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handlePing broadcasts a liveness probe to every device on the bus.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	if err := s.hub.SendPing(); err != nil {
		s.logger.Error("broadcast ping failed", "error", err)
		writeInternalError(w, "failed to send ping")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}
