// Package models defines the domain types for Anubis.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContentKind tags the variant held by a BlockContent.
type ContentKind string

const (
	KindMarkdown ContentKind = "markdown"
	KindCode     ContentKind = "code"
	KindLink     ContentKind = "link"
	KindEmbed    ContentKind = "embed"
)

// BlockInfo is the parsed block header: [name|template].
type BlockInfo struct {
	Name         string `json:"name"`
	TemplateName string `json:"template_name"`
}

// BlockContent is one item of a block body. Text holds the markdown or code
// for KindMarkdown/KindCode and the target block name for KindLink/KindEmbed.
type BlockContent struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text"`
}

// Markdown returns a markdown content item.
func Markdown(text string) BlockContent { return BlockContent{Kind: KindMarkdown, Text: text} }

// Code returns a code fence content item.
func Code(text string) BlockContent { return BlockContent{Kind: KindCode, Text: text} }

// Link returns a hyperlink reference to target.
func Link(target string) BlockContent { return BlockContent{Kind: KindLink, Text: target} }

// Embed returns an inline reference to target.
func Embed(target string) BlockContent { return BlockContent{Kind: KindEmbed, Text: target} }

// IsReference reports whether the item points at another block.
func (c BlockContent) IsReference() bool {
	return c.Kind == KindLink || c.Kind == KindEmbed
}

// UnmarshalJSON rejects unknown kinds so a corrupt snapshot fails loudly.
func (c *BlockContent) UnmarshalJSON(data []byte) error {
	type raw BlockContent
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	switch r.Kind {
	case KindMarkdown, KindCode, KindLink, KindEmbed:
	default:
		return fmt.Errorf("models: unknown content kind %q", r.Kind)
	}
	*c = BlockContent(r)
	return nil
}

// Block is a named unit of documentation extracted from a comment.
type Block struct {
	Info    BlockInfo      `json:"info"`
	Content []BlockContent `json:"content"`
	// Origin is the source file the block was scanned from, relative to the
	// source root. Empty for blocks built in memory.
	Origin string `json:"origin,omitempty"`
}

// References returns the link and embed items of b in document order.
func (b Block) References() []BlockContent {
	var out []BlockContent
	for _, c := range b.Content {
		if c.IsReference() {
			out = append(out, c)
		}
	}
	return out
}

// LanguageConfig holds the comment delimiters used to find blocks in files
// of one language.
type LanguageConfig struct {
	Language       string `yaml:"language" json:"language"`
	BlockMarker    string `yaml:"marker" json:"marker"`
	LineComment    string `yaml:"line" json:"line,omitempty"`
	MultilineStart string `yaml:"start" json:"start"`
	MultilineEnd   string `yaml:"end" json:"end"`
}

// SourceFile is a lightweight representation of a scanned file.
type SourceFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
