package api

import (
	"net/http"

	"safedrop-backend/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// sharedPathPrefix is the public path of share links
const sharedPathPrefix = "/v1/shared/"

// Routes builds the chi router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // preflight cache
	}))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	// API v1
	r.Route("/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/users/register", h.handleRegisterUser)
		r.Post("/users/login", h.handleLoginUser)
		r.Get("/shared/{token}", h.handleDownloadShared)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/me/stats", h.handleGetStats)

			r.Route("/files", func(r chi.Router) {
				r.Get("/", h.handleListFiles)
				r.Post("/", h.handleUploadFile)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetFile)
					r.Delete("/", h.handleDeleteFile)
					r.Get("/download", h.handleDownloadFile)
					r.Post("/share", h.handleToggleShare)
					r.Put("/share", h.handleEnableShare)
					r.Delete("/share", h.handleRevokeShare)
					r.Get("/share-link", h.handleGetShareLink)
					r.Get("/logs", h.handleGetAccessLogs)
				})
			})

			// Admin endpoints
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequireAdmin)

				r.Get("/users", h.handleAdminListUsers)
				r.Get("/users/{id}", h.handleAdminGetUser)
				r.Delete("/users/{id}", h.handleAdminDeleteUser)
			})
		})
	})

	return r
}
