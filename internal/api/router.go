package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grayside/grayside/internal/nodeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *nodeservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Content.
	r.Get("/nodes", h.ListNodes)
	r.Get("/nodes/*", h.GetNode)
	r.Get("/tags", h.Tags)
	r.Get("/search", h.Search)

	// Derivations.
	r.Get("/slug", h.Slug)
	r.Get("/color", h.Color)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
