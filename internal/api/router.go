package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Routes are deliberately flat: sensor firmware addresses the endpoints with
// fixed paths and no versioning, so the ingress surface stays stable.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Sensor event ingress
	r.Post("/connection", s.handleConnectionDetected)
	r.Post("/connection-finish", s.handleConnectionFinished)
	r.Post("/motion", s.handleMotionDetected)
	r.Post("/motion-finish", s.handleMotionFinished)

	// Sensor reachability probe
	r.Get("/test", s.handleTest)

	// Dashboard support
	r.Get("/health", s.handleHealth)
	r.Get("/grid", s.handleGrid)

	// WebSocket endpoint
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}
