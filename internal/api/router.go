package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nixstrav/mng-core/internal/auth"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required; logout clears whatever it finds)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Protected routes: live session plus CSRF token on mutations
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Use(s.csrfMiddleware)

			r.Get("/auth/me", s.handleMe)

			// Tag registry: anyone logged in reads, operators mutate
			r.Route("/tags", func(r chi.Router) {
				r.Get("/", s.handleListTags)
				r.Get("/alias-suggest", s.handleSuggestAlias)

				r.Group(func(r chi.Router) {
					r.Use(s.requireRole(auth.RoleOperator))
					r.Post("/", s.handleCreateTag)
				})

				r.Group(func(r chi.Router) {
					r.Use(s.requireRole(auth.RoleAdmin))
					r.Post("/resync", s.handleResyncMirror)
				})

				r.Route("/{epc}", func(r chi.Router) {
					r.Get("/", s.handleGetTag)
					r.Get("/events", s.handleTagEvents)

					r.Group(func(r chi.Router) {
						r.Use(s.requireRole(auth.RoleOperator))
						r.Patch("/", s.handleUpdateTag)
						r.Delete("/", s.handleDeactivateTag)
					})
				})
			})

			// Bridge event log
			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Get("/errors", s.handleRecentErrors)
				r.Get("/unknown", s.handleUnknownTags)
			})

			// Reader and node presence
			r.Route("/system", func(r chi.Router) {
				r.Get("/nodes", s.handleSystemNodes)
				r.Get("/readers", s.handleSystemReaders)
				r.Get("/problems", s.handleSystemProblems)
			})

			// Administration
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.handleListUsers)
					r.Post("/", s.handleCreateUser)
					r.Patch("/{id}", s.handleUpdateUser)
					r.Put("/{id}/password", s.handleSetPassword)
				})

				r.Get("/audit", s.handleListAudit)
			})

			// Live read feed (auth via session cookie on the upgrade request)
			r.Get("/ws", s.handleWebSocket)
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
