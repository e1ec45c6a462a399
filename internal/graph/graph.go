// Package graph maintains the symmetric reference graph between blocks.
//
// Every link or embed in a block adds an undirected edge between the block and
// its target. Edges remember which kinds of reference produced them, so
// consumers can tell "referenced" from "inlined".
package graph

import (
	"sort"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/starford/anubis/internal/models"
)

// Kind is a bit set of reference kinds carried by an edge.
type Kind uint8

const (
	KindLink Kind = 1 << iota
	KindEmbed
)

// Has reports whether k includes other.
func (k Kind) Has(other Kind) bool { return k&other != 0 }

// String returns "link", "embed", "link+embed" or "".
func (k Kind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindEmbed:
		return "embed"
	case KindLink | KindEmbed:
		return "link+embed"
	default:
		return ""
	}
}

func kindOf(c models.BlockContent) Kind {
	if c.Kind == models.KindEmbed {
		return KindEmbed
	}
	return KindLink
}

// Edge is one undirected edge, reported with Source < Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Graph stores outgoing references per block; the undirected view is derived
// from them so symmetry holds by construction. Graph is not safe for
// concurrent mutation; the document store serializes access.
type Graph struct {
	out map[string]map[string]Kind
	in  map[string]map[string]Kind
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		out: make(map[string]map[string]Kind),
		in:  make(map[string]map[string]Kind),
	}
}

// Insert records the references of block. Re-inserting a name replaces the
// references contributed by its previous version.
func (g *Graph) Insert(block models.Block) {
	name := block.Info.Name
	g.retract(name)

	refs := make(map[string]Kind)
	for _, c := range block.References() {
		refs[c.Text] |= kindOf(c)
	}
	g.out[name] = refs
	g.ensureIn(name)
	for target, k := range refs {
		g.ensureIn(target)[name] |= k
	}
}

// AddEdge records a single reference from source to target. It is used when
// restoring a persisted graph.
func (g *Graph) AddEdge(source, target string, k Kind) {
	if _, ok := g.out[source]; !ok {
		g.out[source] = make(map[string]Kind)
	}
	g.out[source][target] |= k
	g.ensureIn(source)
	g.ensureIn(target)[source] |= k
}

// Touch makes sure name has an entry, even without neighbours.
func (g *Graph) Touch(name string) {
	if _, ok := g.out[name]; !ok {
		g.out[name] = make(map[string]Kind)
	}
	g.ensureIn(name)
}

func (g *Graph) ensureIn(name string) map[string]Kind {
	m, ok := g.in[name]
	if !ok {
		m = make(map[string]Kind)
		g.in[name] = m
	}
	return m
}

// retract drops the references of name. A target left with no incoming
// references and no block of its own loses its entry.
func (g *Graph) retract(name string) {
	for target := range g.out[name] {
		m, ok := g.in[target]
		if !ok {
			continue
		}
		delete(m, name)
		if _, isBlock := g.out[target]; len(m) == 0 && !isBlock {
			delete(g.in, target)
		}
	}
	delete(g.out, name)
}

// Has reports whether name has a graph entry.
func (g *Graph) Has(name string) bool {
	if _, ok := g.out[name]; ok {
		return true
	}
	_, ok := g.in[name]
	return ok
}

// Neighbors returns the sorted neighbour names of name. The second result is
// false when name has no entry.
func (g *Graph) Neighbors(name string) ([]string, bool) {
	if !g.Has(name) {
		return nil, false
	}
	set := treeset.NewWithStringComparator()
	for n := range g.out[name] {
		set.Add(n)
	}
	for n := range g.in[name] {
		set.Add(n)
	}
	out := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		out = append(out, v.(string))
	}
	return out, true
}

// Kinds returns the reference kinds on the undirected edge between a and b.
func (g *Graph) Kinds(a, b string) Kind {
	return g.out[a][b] | g.out[b][a]
}

// Nodes returns every name with an entry, sorted.
func (g *Graph) Nodes() []string {
	seen := make(map[string]struct{}, len(g.out)+len(g.in))
	for n := range g.out {
		seen[n] = struct{}{}
	}
	for n := range g.in {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Edges returns every undirected edge once, sorted by source then target.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, a := range g.Nodes() {
		nbrs, _ := g.Neighbors(a)
		for _, b := range nbrs {
			if a > b {
				continue
			}
			out = append(out, Edge{Source: a, Target: b, Kind: g.Kinds(a, b).String()})
		}
	}
	return out
}

// Reference is one directed reference, as persisted.
type Reference struct {
	Source string
	Target string
	Kind   Kind
}

// References returns every directed reference, sorted.
func (g *Graph) References() []Reference {
	var out []Reference
	for source, targets := range g.out {
		for target, k := range targets {
			out = append(out, Reference{Source: source, Target: target, Kind: k})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}
