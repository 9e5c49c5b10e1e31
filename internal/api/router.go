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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, like /health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/accessory", s.handleGetAccessory)
			r.Get("/characteristics", s.handleListCharacteristics)
			r.Get("/characteristics/{name}", s.handleGetCharacteristic)
			r.Get("/state", s.handleGetState)
			r.Get("/history", s.handleGetHistory)
			r.Get("/ws", s.handleWebSocket)

			// Writes reach the robot
			r.Group(func(r chi.Router) {
				r.Use(s.requireControl)
				r.Put("/characteristics/{name}", s.handleSetCharacteristic)
				r.Post("/accessory/identify", s.handleIdentify)
			})
		})
	})

	return r
}
