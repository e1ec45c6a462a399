package render

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	mdparser "github.com/gomarkdown/markdown/parser"
)

// GoMarkdown implements Markdown with gomarkdown.
type GoMarkdown struct {
	extensions mdparser.Extensions
	flags      mdhtml.Flags
}

// NewGoMarkdown returns a converter with the common extensions enabled.
func NewGoMarkdown() *GoMarkdown {
	return &GoMarkdown{
		extensions: mdparser.CommonExtensions | mdparser.AutoHeadingIDs | mdparser.NoEmptyLineBeforeBlock,
		flags:      mdhtml.CommonFlags,
	}
}

// ToHTML converts src. A parser holds state, so each call builds a new one.
func (g *GoMarkdown) ToHTML(src string) (string, error) {
	p := mdparser.NewWithExtensions(g.extensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: g.flags})
	return string(markdown.ToHTML([]byte(src), p, r)), nil
}
