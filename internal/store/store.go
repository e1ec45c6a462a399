// Package store holds the document store: parsed blocks, their language
// bindings, the reference graph and the rendered-HTML cache.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/graph"
	"github.com/starford/anubis/internal/models"
)

// Store is the aggregate produced by a parse pass and completed by a render
// pass. All methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	blocks map[string]models.Block
	langs  map[string]models.LanguageConfig
	graph  *graph.Graph
	html   map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		blocks: make(map[string]models.Block),
		langs:  make(map[string]models.LanguageConfig),
		graph:  graph.New(),
		html:   make(map[string]string),
	}
}

// Insert adds block with the language it was scanned under. A block with the
// same name is replaced, along with its language binding and the graph edges
// its previous version contributed.
func (s *Store) Insert(block models.Block, lang models.LanguageConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := block.Info.Name
	s.blocks[name] = block
	s.langs[name] = lang
	s.graph.Insert(block)
	delete(s.html, name)
}

// Block returns the block stored under name.
func (s *Store) Block(name string) (models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[name]
	if !ok {
		return models.Block{}, fmt.Errorf("store: %q: %w", name, apperr.ErrBlockNotFound)
	}
	return b, nil
}

// Language returns the language binding of block name.
func (s *Store) Language(name string) (models.LanguageConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.langs[name]
	if !ok {
		return models.LanguageConfig{}, fmt.Errorf("store: no language binding for %q: %w", name, apperr.ErrConfig)
	}
	return l, nil
}

// Neighbors returns the sorted neighbour names of block name.
func (s *Store) Neighbors(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.graph.Neighbors(name)
	if !ok {
		return nil, fmt.Errorf("store: %q: %w", name, apperr.ErrConnectionsNotFound)
	}
	return n, nil
}

// EdgeKind returns the reference kinds on the edge between a and b.
func (s *Store) EdgeKind(a, b string) graph.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Kinds(a, b)
}

// HTML returns the cached rendering of name.
func (s *Store) HTML(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.html[name]
	return h, ok
}

// SetHTML caches a completed rendering of name.
func (s *Store) SetHTML(name, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html[name] = html
}

// ClearHTML drops every cached rendering.
func (s *Store) ClearHTML() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = make(map[string]string)
}

// Names returns every block name, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blocks))
	for n := range s.blocks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of blocks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// GraphView is the serialisable form of the reference graph.
type GraphView struct {
	Nodes []string     `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Graph returns a snapshot of the reference graph.
func (s *Store) Graph() GraphView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := s.graph.Nodes()
	edges := s.graph.Edges()
	if edges == nil {
		edges = []graph.Edge{}
	}
	return GraphView{Nodes: nodes, Edges: edges}
}

// Snapshot is a plain copy of the store contents used for persistence.
type Snapshot struct {
	Blocks     []models.Block
	Languages  map[string]models.LanguageConfig
	References []graph.Reference
	Pages      map[string]string
}

// Snapshot copies the store contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Blocks:     make([]models.Block, 0, len(s.blocks)),
		Languages:  make(map[string]models.LanguageConfig, len(s.langs)),
		References: s.graph.References(),
		Pages:      make(map[string]string, len(s.html)),
	}
	for _, b := range s.blocks {
		snap.Blocks = append(snap.Blocks, b)
	}
	sort.Slice(snap.Blocks, func(i, j int) bool { return snap.Blocks[i].Info.Name < snap.Blocks[j].Info.Name })
	for k, v := range s.langs {
		snap.Languages[k] = v
	}
	for k, v := range s.html {
		snap.Pages[k] = v
	}
	return snap
}

// FromSnapshot rebuilds a store. The graph is restored from the persisted
// references rather than recomputed, so it matches what was saved.
func FromSnapshot(snap Snapshot) *Store {
	s := New()
	for _, b := range snap.Blocks {
		s.blocks[b.Info.Name] = b
		s.graph.Touch(b.Info.Name)
	}
	for k, v := range snap.Languages {
		s.langs[k] = v
	}
	for _, r := range snap.References {
		s.graph.AddEdge(r.Source, r.Target, r.Kind)
	}
	for k, v := range snap.Pages {
		s.html[k] = v
	}
	return s
}
