// Package server wires HTTP handlers into a chi router for the LFG chat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tyrowin/lfgchat/internal/metrics"
)

// NewRouter configures and returns the application router. It sets up the
// health check, the WebSocket endpoint, the diagnostics API, metrics, and
// the test page.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.HandleFunc("/", HealthHandler)
	r.Get("/ws", s.ServeWS)
	r.Get("/test", TestPageHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/rooms", s.RoomsHandler)
		r.Get("/sessions", s.SessionsHandler)
	})

	return r
}
