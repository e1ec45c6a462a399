package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/metrics"
)

// NewSiteRouter creates the public site routes: the landing page, the graph
// endpoint and one page per rendered block.
func NewSiteRouter(svc *docservice.Service, m *metrics.Metrics) chi.Router {
	h := NewSiteHandler(svc, m)

	r := chi.NewRouter()
	r.Get("/", h.Home)
	r.Get("/get/graph", h.Graph)
	r.Get("/*", h.Page)
	return r
}

// NewRouter creates a chi router with all JSON API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Blocks.
	r.Get("/blocks", h.ListBlocks)
	r.Get("/blocks/{name}", h.GetBlock)
	r.Get("/blocks/{name}/connections", h.Connections)

	// Search.
	r.Get("/search", h.Search)

	// Graph.
	r.Get("/graph", h.Graph)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
