// Package lang maps file extensions to the comment delimiters used to find
// documentation blocks.
package lang

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/models"
)

// Lookup resolves the delimiter entry for a file.
type Lookup interface {
	ForFile(path string) (models.LanguageConfig, error)
}

// Table maps a file extension (without the leading dot) to its delimiters.
type Table map[string]models.LanguageConfig

// Verify Table satisfies Lookup at compile time.
var _ Lookup = Table(nil)

// Extension returns the part of the file name after its last dot, or "" when
// the name has none.
func Extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return base[i+1:]
}

// ForFile returns the entry for path's extension. A file without an
// extension or with an unknown one yields apperr.ErrConfig.
func (t Table) ForFile(path string) (models.LanguageConfig, error) {
	ext := Extension(path)
	if ext == "" {
		return models.LanguageConfig{}, fmt.Errorf("lang: no file extension: %s: %w", path, apperr.ErrConfig)
	}
	cfg, ok := t[ext]
	if !ok {
		return models.LanguageConfig{}, fmt.Errorf("lang: config not found for file: %s: %w", path, apperr.ErrConfig)
	}
	return cfg, nil
}

// Extensions returns the configured extensions in sorted order.
func (t Table) Extensions() []string {
	out := make([]string, 0, len(t))
	for ext := range t {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Validate checks every entry has the delimiters the scanner needs.
func (t Table) Validate() error {
	for _, ext := range t.Extensions() {
		cfg := t[ext]
		if err := validation.ValidateStruct(&cfg,
			validation.Field(&cfg.Language, validation.Required),
			validation.Field(&cfg.BlockMarker, validation.Required),
			validation.Field(&cfg.MultilineStart, validation.Required),
			validation.Field(&cfg.MultilineEnd, validation.Required),
		); err != nil {
			return fmt.Errorf("languages.%s: %w", ext, err)
		}
	}
	return nil
}

func cStyle(language string) models.LanguageConfig {
	return models.LanguageConfig{
		Language:       language,
		BlockMarker:    "@",
		LineComment:    "//",
		MultilineStart: "/*",
		MultilineEnd:   "*/",
	}
}

// Default returns the built-in table used when the config file has no
// languages section.
func Default() Table {
	return Table{
		"rs":   cStyle("rust"),
		"go":   cStyle("go"),
		"c":    cStyle("c"),
		"h":    cStyle("c"),
		"cpp":  cStyle("cpp"),
		"hpp":  cStyle("cpp"),
		"java": cStyle("java"),
		"js":   cStyle("javascript"),
		"ts":   cStyle("typescript"),
		"css":  cStyle("css"),
		"sql": {
			Language:       "sql",
			BlockMarker:    "@",
			LineComment:    "--",
			MultilineStart: "/*",
			MultilineEnd:   "*/",
		},
	}
}
