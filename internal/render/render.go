// Package render resolves blocks into HTML, inlining embedded blocks and
// caching every completed rendering in the document store.
package render

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/models"
)

// Store is the part of the document store the resolver reads and fills.
type Store interface {
	Block(name string) (models.Block, error)
	Language(name string) (models.LanguageConfig, error)
	Neighbors(name string) ([]string, error)
	HTML(name string) (string, bool)
	SetHTML(name, html string)
}

// Markdown converts markdown source to an HTML fragment.
type Markdown interface {
	ToHTML(src string) (string, error)
}

// Templates executes a named HTML template.
type Templates interface {
	Execute(name string, data any) (string, error)
}

// Links maps a block name to the href of its page.
type Links interface {
	Href(name string) string
}

// ServeLinks addresses pages served over HTTP: the base URL followed by the
// escaped block name.
type ServeLinks string

// Href implements Links.
func (b ServeLinks) Href(name string) string {
	return string(b) + url.PathEscape(name)
}

// ExportLinks addresses pages written to disk by ExportFile. Prefix is the
// path from the linking page to the pages directory, empty for pages that
// link to their siblings.
type ExportLinks struct {
	Prefix string
}

// Href implements Links.
func (l ExportLinks) Href(name string) string {
	return l.Prefix + url.PathEscape(ExportFile(name))
}

var exportNameReplacer = strings.NewReplacer("/", "~", `\`, "~")

// ExportFile is the file name the exported page of name is written to. Path
// separators are replaced so every page sits directly in one directory.
func ExportFile(name string) string {
	return exportNameReplacer.Replace(name) + ".html"
}

// PageData is the template context of a single block.
type PageData struct {
	Name        string
	Template    string
	BaseURL     string
	Content     template.HTML
	Connections []string
	Links       Links
}

// Href returns the link to the page of name.
func (d PageData) Href(name string) string { return hrefOf(d.Links, d.BaseURL, name) }

// IndexData is the template context of the landing page.
type IndexData struct {
	Title   string
	BaseURL string
	Blocks  []string
	Links   Links
}

// Href returns the link to the page of name.
func (d IndexData) Href(name string) string { return hrefOf(d.Links, d.BaseURL, name) }

func hrefOf(l Links, baseURL, name string) string {
	if l == nil {
		l = ServeLinks(baseURL)
	}
	return l.Href(name)
}

// Resolver renders blocks from a Store.
type Resolver struct {
	store Store
	md    Markdown
	tpl   Templates
	links Links
}

// NewResolver creates a resolver. links forms every link href; nil means
// ServeLinks("/").
func NewResolver(store Store, md Markdown, tpl Templates, links Links) *Resolver {
	if links == nil {
		links = ServeLinks("/")
	}
	return &Resolver{store: store, md: md, tpl: tpl, links: links}
}

// Render returns the HTML for block name, rendering and caching it on first
// use. Embed cycles fail with apperr.ErrRecursiveTemplate.
func (r *Resolver) Render(name string) (string, error) {
	return r.resolve(name, make(map[string]struct{}))
}

func (r *Resolver) resolve(name string, active map[string]struct{}) (string, error) {
	if cached, ok := r.store.HTML(name); ok {
		return cached, nil
	}
	if _, ok := active[name]; ok {
		return "", fmt.Errorf("render: %q embeds itself: %w", name, apperr.ErrRecursiveTemplate)
	}
	active[name] = struct{}{}
	defer delete(active, name)

	block, err := r.store.Block(name)
	if err != nil {
		return "", err
	}
	lang, err := r.store.Language(name)
	if err != nil {
		return "", err
	}
	connections, err := r.store.Neighbors(name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, item := range block.Content {
		fragment, err := r.fragment(item, lang, active)
		if err != nil {
			return "", fmt.Errorf("render %q: %w", name, err)
		}
		sb.WriteString(fragment)
	}

	out, err := r.tpl.Execute(templateName(block.Info.TemplateName), PageData{
		Name:        name,
		Template:    block.Info.TemplateName,
		Content:     template.HTML(sb.String()), //nolint:gosec // produced by the markdown renderer
		Connections: connections,
		Links:       r.links,
	})
	if err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}

	r.store.SetHTML(name, out)
	return out, nil
}

func (r *Resolver) fragment(item models.BlockContent, lang models.LanguageConfig, active map[string]struct{}) (string, error) {
	switch item.Kind {
	case models.KindMarkdown:
		return r.md.ToHTML(item.Text)
	case models.KindCode:
		return r.md.ToHTML(codeFence(item.Text, lang.Language))
	case models.KindLink:
		return r.link(item.Text), nil
	case models.KindEmbed:
		return r.resolve(item.Text, active)
	default:
		return "", fmt.Errorf("unknown content kind %q", item.Kind)
	}
}

// LinkHref returns the href for a link to target.
func (r *Resolver) LinkHref(target string) string {
	return r.links.Href(target)
}

func (r *Resolver) link(target string) string {
	return `<a href="` + html.EscapeString(r.LinkHref(target)) + `">` + html.EscapeString(target) + `</a>`
}

// codeFence wraps code in a fenced block tagged with language. The fence is
// longer than any backtick run inside the code.
func codeFence(code, language string) string {
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	return fence + language + "\n" + strings.Trim(code, "\r\n") + "\n" + fence + "\n"
}

// templateName maps an empty header template to the default one.
func templateName(name string) string {
	if name == "" {
		return DefaultTemplate
	}
	return name
}
