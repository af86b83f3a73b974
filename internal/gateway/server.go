package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", s.handleHealth())

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Admin endpoints — bearer auth when a token is configured.
	r.Group(func(r chi.Router) {
		if s.config.Token != "" {
			r.Use(authMiddleware(s.config.Token))
		}
		r.Get("/status", s.handleStatus())
		r.Route("/api", func(r chi.Router) {
			r.Get("/jobs", s.handleListJobs())
			r.Post("/jobs", s.handleCreateJob())
			r.Get("/jobs/{id}", s.handleGetJob())
			r.Patch("/jobs/{id}", s.handleUpdateJob())
			r.Delete("/jobs/{id}", s.handleDeleteJob())
			r.Post("/jobs/{id}/enable", s.handleSetEnabled(true))
			r.Post("/jobs/{id}/disable", s.handleSetEnabled(false))
			r.Get("/history", s.handleHistory())
		})
	})

	return r
}
