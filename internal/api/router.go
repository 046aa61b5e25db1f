// Package api exposes submissions, the verification queue, and the spot
// directory over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/places"
	"github.com/michojekunle/amala-atlas/internal/store"
	"github.com/michojekunle/amala-atlas/internal/verification"
)

// Deps are the services the HTTP handlers call.
type Deps struct {
	Store     store.Store
	Factory   *places.Factory
	Directory *places.Directory
	Engine    *verification.Engine
}

type handler struct {
	Deps
}

// NewRouter builds the HTTP handler for all routes.
func NewRouter(deps Deps, cfg config.ServerConfig) http.Handler {
	h := &handler{Deps: deps}
	limiter := newIPLimiter(cfg.SubmitRatePerSec, cfg.SubmitBurst)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", UserIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.With(limiter.middleware).Post("/submit-candidate", h.submitCandidate)

	r.Route("/verify", func(r chi.Router) {
		r.Get("/queue", h.verifyQueue)
		r.Get("/candidates/{id}", h.verifyCandidate)
		r.Post("/action", h.verifyAction)
	})

	r.Route("/spots", func(r chi.Router) {
		r.Get("/", h.listSpots)
		r.Get("/{id}", h.getSpot)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
