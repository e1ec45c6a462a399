package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/docservice"
)

// Handler holds JSON API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// blockName extracts the block name from the {name} URL parameter.
// Supports encoded names from API clients (e.g. My%20Block).
func blockName(r *http.Request) string {
	return unescape(chi.URLParam(r, "name"))
}

func unescape(raw string) string {
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListBlocks handles GET /api/blocks.
//
//	@Summary		List every block
//	@Tags			blocks
//	@Produce		json
//	@Success		200		{object}	BlockListResponse
//	@Security		BearerAuth
//	@Router			/blocks [get]
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	items := h.svc.ListBlocks(r.Context())
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: items, Total: len(items)})
}

// GetBlock handles GET /api/blocks/{name}.
//
//	@Summary		Get a single block by name
//	@Tags			blocks
//	@Produce		json
//	@Param			name	path		string	true	"Block name"
//	@Success		200		{object}	BlockDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{name} [get]
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	name := blockName(r)
	if name == "" {
		writeError(w, http.StatusBadRequest, "block name is required")
		return
	}
	detail, err := h.svc.GetBlock(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "block not found")
			return
		}
		slog.Error("get block failed", slog.String("name", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Connections handles GET /api/blocks/{name}/connections.
//
//	@Summary		List the neighbours of a block
//	@Tags			blocks
//	@Produce		json
//	@Param			name	path		string	true	"Block name"
//	@Success		200		{object}	ConnectionsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{name}/connections [get]
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	name := blockName(r)
	conns, err := h.svc.Connections(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrBlockNotFound) {
			writeError(w, http.StatusNotFound, "block not found")
			return
		}
		slog.Error("connections failed", slog.String("name", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ConnectionsResponse{Name: name, Connections: conns})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across blocks
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResult{Name: res.Name, Template: res.Template, Snippet: res.Snippet})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the reference graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g := h.svc.Graph(r.Context())
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: g.Nodes, Edges: g.Edges})
}
