package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/docservice"
	"github.com/starford/anubis/internal/metrics"
)

// SiteHandler serves rendered HTML pages.
type SiteHandler struct {
	svc     *docservice.Service
	metrics *metrics.Metrics
}

// NewSiteHandler creates a SiteHandler. m may be nil.
func NewSiteHandler(svc *docservice.Service, m *metrics.Metrics) *SiteHandler {
	return &SiteHandler{svc: svc, metrics: m}
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *SiteHandler) count(status int) {
	if h.metrics != nil {
		h.metrics.PageRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}

// Home handles GET /.
func (h *SiteHandler) Home(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Index(r.Context())
	if err != nil {
		slog.Error("index page failed", slog.String("error", err.Error()))
		h.count(http.StatusInternalServerError)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.count(http.StatusOK)
	writeHTML(w, http.StatusOK, page)
}

// Graph handles GET /get/graph.
func (h *SiteHandler) Graph(w http.ResponseWriter, r *http.Request) {
	g := h.svc.Graph(r.Context())
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: g.Nodes, Edges: g.Edges})
}

// Page handles GET /{name}. Missing pages are 404; any other failure is a
// 500 without detail.
func (h *SiteHandler) Page(w http.ResponseWriter, r *http.Request) {
	name := unescape(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if name == "" {
		h.Home(w, r)
		return
	}
	page, err := h.svc.Page(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrPageNotFound) || errors.Is(err, apperr.ErrBlockNotFound) {
			h.count(http.StatusNotFound)
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		slog.Error("page failed", slog.String("name", name), slog.String("error", err.Error()))
		h.count(http.StatusInternalServerError)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.count(http.StatusOK)
	writeHTML(w, http.StatusOK, page)
}
