package storage

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Matcher is a compiled set of ignore patterns. Patterns are matched against
// slash-separated paths relative to the root; '*' also matches '/'.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles patterns. An invalid pattern is an error.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("storage: bad ignore pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether rel matches any pattern.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
