// Package docservice holds the published document store and answers the
// read queries of the HTTP and MCP surfaces.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/graph"
	"github.com/starford/anubis/internal/index"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/render"
	"github.com/starford/anubis/internal/store"
)

// Searcher runs full-text queries against the persisted store.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// Connection is one neighbour of a block.
type Connection struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// BlockDetail is the full representation of a block.
type BlockDetail struct {
	Name        string                `json:"name"`
	Template    string                `json:"template"`
	Origin      string                `json:"origin,omitempty"`
	Language    string                `json:"language"`
	Content     []models.BlockContent `json:"content"`
	Connections []Connection          `json:"connections"`
	HTML        string                `json:"html,omitempty"`
}

// BlockListItem is a lightweight item in a list response.
type BlockListItem struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	Origin   string `json:"origin,omitempty"`
	Rendered bool   `json:"rendered"`
}

// Service publishes one store at a time. Readers hold the read lock for the
// whole lookup and layout render; Swap replaces the store under the write
// lock.
type Service struct {
	mu      sync.RWMutex
	st      *store.Store
	tpl     render.Templates
	search  Searcher
	baseURL string
	links   render.Links
	title   string
}

// Options configures a Service. Search is optional; without it queries scan
// the in-memory store. Links defaults to hrefs under BaseURL.
type Options struct {
	Templates render.Templates
	Search    Searcher
	BaseURL   string
	Links     render.Links
	Title     string
}

// New creates a service publishing st.
func New(st *store.Store, opts Options) *Service {
	title := opts.Title
	if title == "" {
		title = "Anubis"
	}
	links := opts.Links
	if links == nil {
		links = render.ServeLinks(opts.BaseURL)
	}
	return &Service{
		st:      st,
		tpl:     opts.Templates,
		search:  opts.Search,
		baseURL: opts.BaseURL,
		links:   links,
		title:   title,
	}
}

// Swap publishes st in place of the current store.
func (s *Service) Swap(st *store.Store) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}

// Ready reports whether a store has been published.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st != nil
}

func (s *Service) current() (*store.Store, error) {
	if s.st == nil {
		return nil, fmt.Errorf("docservice: no store published: %w", apperr.ErrPageNotFound)
	}
	return s.st, nil
}

// Page returns the full HTML page for block name: its cached rendering
// wrapped in the page layout together with its connections. An unknown name
// yields apperr.ErrPageNotFound; a known block whose render failed yields
// apperr.ErrRenderFailed.
func (s *Service) Page(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.current()
	if err != nil {
		return "", err
	}
	block, err := st.Block(name)
	if err != nil {
		return "", fmt.Errorf("docservice: page %q: %w", name, apperr.ErrPageNotFound)
	}
	html, ok := st.HTML(name)
	if !ok {
		return "", fmt.Errorf("docservice: page %q: %w", name, apperr.ErrRenderFailed)
	}
	conns, err := st.Neighbors(name)
	if err != nil {
		return "", err
	}
	return s.tpl.Execute(render.PageTemplate, render.PageData{
		Name:        name,
		Template:    block.Info.TemplateName,
		BaseURL:     s.baseURL,
		Content:     template.HTML(html), //nolint:gosec // produced by the render resolver
		Connections: conns,
		Links:       s.links,
	})
}

// Index returns the landing page listing every rendered block.
func (s *Service) Index(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	if s.st != nil {
		for _, n := range s.st.Names() {
			if _, ok := s.st.HTML(n); ok {
				names = append(names, n)
			}
		}
	}
	return s.tpl.Execute(render.IndexTemplate, render.IndexData{
		Title:   s.title,
		BaseURL: s.baseURL,
		Blocks:  names,
		Links:   s.links,
	})
}

// Graph returns the node and edge lists of the reference graph.
func (s *Service) Graph(_ context.Context) store.GraphView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st == nil {
		return store.GraphView{Nodes: []string{}, Edges: []graph.Edge{}}
	}
	return s.st.Graph()
}

// ListBlocks returns every block, sorted by name.
func (s *Service) ListBlocks(_ context.Context) []BlockListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []BlockListItem{}
	if s.st == nil {
		return out
	}
	for _, n := range s.st.Names() {
		b, err := s.st.Block(n)
		if err != nil {
			continue
		}
		_, rendered := s.st.HTML(n)
		out = append(out, BlockListItem{
			Name:     n,
			Template: b.Info.TemplateName,
			Origin:   b.Origin,
			Rendered: rendered,
		})
	}
	return out
}

// GetBlock returns block name with its connections and cached rendering.
func (s *Service) GetBlock(_ context.Context, name string) (*BlockDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.current()
	if err != nil {
		return nil, apperr.ErrBlockNotFound
	}
	b, err := st.Block(name)
	if err != nil {
		return nil, err
	}
	conns, err := connections(st, name)
	if err != nil {
		return nil, err
	}
	lang, _ := st.Language(name)
	html, _ := st.HTML(name)
	return &BlockDetail{
		Name:        b.Info.Name,
		Template:    b.Info.TemplateName,
		Origin:      b.Origin,
		Language:    lang.Language,
		Content:     b.Content,
		Connections: conns,
		HTML:        html,
	}, nil
}

// Connections returns the neighbours of name with their edge kinds. Names
// that only appear as reference targets are valid.
func (s *Service) Connections(_ context.Context, name string) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.current()
	if err != nil {
		return nil, apperr.ErrBlockNotFound
	}
	conns, err := connections(st, name)
	if errors.Is(err, apperr.ErrConnectionsNotFound) {
		return nil, fmt.Errorf("docservice: %q: %w", name, apperr.ErrBlockNotFound)
	}
	return conns, err
}

func connections(st *store.Store, name string) ([]Connection, error) {
	nb, err := st.Neighbors(name)
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(nb))
	for _, n := range nb {
		out = append(out, Connection{Name: n, Kind: st.EdgeKind(name, n).String()})
	}
	return out, nil
}

// Search returns blocks matching query. Without a Searcher it matches
// names and block text case-insensitively in memory.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.search != nil {
		return s.search.Search(query, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []index.SearchResult{}
	if s.st == nil || query == "" {
		return out, nil
	}
	q := strings.ToLower(query)
	for _, n := range s.st.Names() {
		b, err := s.st.Block(n)
		if err != nil {
			continue
		}
		text := index.BlockText(b)
		if !strings.Contains(strings.ToLower(n), q) && !strings.Contains(strings.ToLower(text), q) {
			continue
		}
		out = append(out, index.SearchResult{Name: n, Template: b.Info.TemplateName, Snippet: snippet(text, 200)})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
