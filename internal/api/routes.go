package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/subscribers", func(r chi.Router) {
			r.Post("/", h.CreateSubscriber)
			r.Route("/{uid}", func(r chi.Router) {
				r.Put("/", h.UpdateSubscriber)
				r.Delete("/", h.DeleteSubscriber)
				r.Get("/sync-status", h.GetSyncStatus)
				r.Post("/resolve", h.ResolveConflicts)
			})
		})

		r.Route("/sync/jobs", func(r chi.Router) {
			r.Post("/", h.StartBulkSync)
			r.Get("/", h.ListJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetJob)
				r.Post("/pause", h.PauseJob)
				r.Post("/resume", h.ResumeJob)
				r.Post("/cancel", h.CancelJob)
			})
		})
	})

	return r
}
