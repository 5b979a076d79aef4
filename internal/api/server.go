// Package api exposes the Navis services over HTTP/JSON.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navis-app/navis-api/internal/auth"
	"github.com/navis-app/navis-api/internal/dashboard"
	"github.com/navis-app/navis-api/internal/feed"
	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/location"
	"github.com/navis-app/navis-api/internal/metrics"
	"github.com/navis-app/navis-api/internal/navy"
	"github.com/navis-app/navis-api/internal/overlay"
	"github.com/navis-app/navis-api/internal/profile"
	"github.com/navis-app/navis-api/internal/route"
	"github.com/navis-app/navis-api/internal/sos"
	"github.com/navis-app/navis-api/internal/store"
)

// Services are the collaborators behind the HTTP surface.
type Services struct {
	Store     store.Store
	Auth      *auth.Service
	Catalog   *geo.Catalog
	Routes    *route.Orchestrator
	Board     *overlay.Board
	Dashboard *dashboard.Service
	Feed      *feed.Service
	SOS       *sos.Service
	Profile   *profile.Service
	Location  *location.Service
	Navy      *navy.Assistant
	Metrics   *metrics.Metrics

	// MetricsHandler serves /metrics. Defaults to the default registry.
	MetricsHandler http.Handler
	CORSOrigins    []string
}

// Handler implements the HTTP endpoints.
type Handler struct {
	svc Services
}

// NewRouter builds the HTTP router.
func NewRouter(s Services) http.Handler {
	if s.MetricsHandler == nil {
		s.MetricsHandler = promhttp.Handler()
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	h := &Handler{svc: s}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Handle("/metrics", s.MetricsHandler)

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/social", h.handleSocialLogin)
		r.Post("/auth/forgot", h.handleForgotPassword)
		r.Get("/zones", h.handleListZones)
		r.Get("/zones/classify", h.handleClassify)
		r.Get("/plans", h.handleListPlans)
		r.Get("/navy/help", h.handleHelpMenu)
		r.Post("/navy/help", h.handleHelpChoice)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/auth/logout", h.handleLogout)
			r.Get("/auth/me", h.handleMe)

			r.Post("/routes/compute", h.handleComputeRoute)
			r.Put("/map", h.handleAttachMap)
			r.Delete("/map", h.handleDetachMap)
			r.Put("/overlay", h.handleSetOverlay)
			r.Get("/overlay", h.handleGetOverlay)

			r.Get("/saved-routes", h.handleListSavedRoutes)
			r.Post("/saved-routes", h.handleSaveRoute)
			r.Patch("/saved-routes/{id}", h.handleRenameRoute)
			r.Delete("/saved-routes/{id}", h.handleDeleteRoute)
			r.Post("/saved-routes/{id}/select", h.handleSelectRoute)
			r.Get("/dashboard", h.handleDashboard)
			r.Put("/dashboard/preferences", h.handleUpdatePreferences)
			r.Put("/plan", h.handleChangePlan)

			r.Get("/posts", h.handleListPosts)
			r.Post("/posts", h.handlePublish)
			r.Delete("/posts/{id}", h.handleDeletePost)
			r.Post("/posts/{id}/like", h.handleLike)
			r.Post("/posts/{id}/pin", h.handlePin)
			r.Post("/posts/{id}/comments", h.handleComment)
			r.Delete("/posts/{id}/comments/{commentID}", h.handleDeleteComment)

			r.Get("/sos/contact", h.handleGetContact)
			r.Put("/sos/contact", h.handleSetContact)
			r.Post("/sos", h.handleTriggerSOS)
			r.Post("/sos/{id}/cancel", h.handleCancelSOS)
			r.Get("/sos/{id}", h.handleSOSStatus)

			r.Get("/profile", h.handleGetProfile)
			r.Put("/profile", h.handleUpdateProfile)
			r.Put("/location", h.handleUpdateLocation)
			r.Get("/location", h.handleCurrentLocation)

			r.Post("/navy", h.handleNavy)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
