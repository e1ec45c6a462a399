package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/starford/anubis/internal/apperr"
)

// Names of the built-in templates.
const (
	DefaultTemplate = "default"
	PageTemplate    = "page"
	IndexTemplate   = "index"
)

//go:embed templates/*.html
var builtin embed.FS

// HTMLTemplates implements Templates with html/template. Templates are keyed
// by file name without the .html suffix.
type HTMLTemplates struct {
	set *template.Template
}

// LoadTemplates parses the built-in templates, then every *.html file in dir.
// A file in dir replaces the built-in template of the same name. dir may be
// empty.
func LoadTemplates(dir string) (*HTMLTemplates, error) {
	set, err := template.New("anubis").ParseFS(builtin, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse built-in templates: %w", err)
	}
	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("render: glob templates: %w", err)
		}
		if len(matches) > 0 {
			if set, err = set.ParseFiles(matches...); err != nil {
				return nil, fmt.Errorf("render: parse templates in %s: %w", dir, err)
			}
		}
	}
	return &HTMLTemplates{set: set}, nil
}

// Execute renders the template called name. Unknown names fall back to the
// default block template.
func (t *HTMLTemplates) Execute(name string, data any) (string, error) {
	tpl := t.lookup(name)
	if tpl == nil {
		tpl = t.lookup(DefaultTemplate)
	}
	if tpl == nil {
		return "", fmt.Errorf("template %q not defined: %w", name, apperr.ErrContext)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template %q: %v: %w", name, err, apperr.ErrContext)
	}
	return buf.String(), nil
}

// Has reports whether a template called name exists.
func (t *HTMLTemplates) Has(name string) bool {
	return t.lookup(name) != nil
}

func (t *HTMLTemplates) lookup(name string) *template.Template {
	if tpl := t.set.Lookup(name + ".html"); tpl != nil {
		return tpl
	}
	if strings.HasSuffix(name, ".html") {
		return t.set.Lookup(name)
	}
	return nil
}
