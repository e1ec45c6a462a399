// Package parser scans source files for documentation blocks.
//
// A block lives inside a comment and has the form
//
//	<marker>[<name>|<template>]<content>*<marker>
//
// where content is free markdown, {link}, {{embed}}, or a code fence written
// as <multiline_end>code<multiline_start>: the code sits outside the comment
// and the comment is re-opened before the block continues.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/anubis/internal/apperr"
	"github.com/starford/anubis/internal/models"
)

// errNoMatch is returned by a grammar rule that does not apply at the current
// position. It never escapes the package.
var errNoMatch = errors.New("no match")

// Scan returns every block in text, in file order. Text outside blocks is
// discarded. A malformed block aborts the scan with apperr.ErrParsing and no
// blocks are returned.
func Scan(text string, lang models.LanguageConfig) ([]models.Block, error) {
	if lang.BlockMarker == "" {
		return nil, fmt.Errorf("parser: empty block marker: %w", apperr.ErrConfig)
	}

	var blocks []models.Block
	rest := text
	for {
		i := strings.Index(rest, lang.BlockMarker)
		if i < 0 {
			return blocks, nil
		}
		// Leading whitespace belongs to the block rule; start there so the
		// remainder matches what ParseBlock would see.
		start := len(strings.TrimRightFunc(rest[:i], unicode.IsSpace))
		candidate := rest[start:]

		if !opensBlock(candidate, lang.BlockMarker) {
			rest = rest[i+len(lang.BlockMarker):]
			continue
		}
		block, remainder, err := ParseBlock(candidate, lang)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		rest = remainder
	}
}

// opensBlock reports whether input starts with whitespace, the marker,
// whitespace and then a header bracket.
func opensBlock(input, marker string) bool {
	s := strings.TrimLeftFunc(input, unicode.IsSpace)
	if !strings.HasPrefix(s, marker) {
		return false
	}
	s = strings.TrimLeftFunc(s[len(marker):], unicode.IsSpace)
	return strings.HasPrefix(s, "[")
}

// ParseBlock parses one block at the start of input and returns it together
// with the unconsumed remainder.
func ParseBlock(input string, lang models.LanguageConfig) (models.Block, string, error) {
	rest, ok := wsTag(input, lang.BlockMarker)
	if !ok {
		return models.Block{}, input, fmt.Errorf("parser: expected block marker %q: %w", lang.BlockMarker, apperr.ErrParsing)
	}

	info, rest, err := ParseHeader(rest)
	if err != nil {
		return models.Block{}, input, err
	}

	var content []models.BlockContent
	for {
		item, next, err := parseContent(rest, lang)
		if err != nil {
			break
		}
		content = append(content, item)
		rest = next
	}
	if len(content) == 0 {
		return models.Block{}, input, fmt.Errorf("parser: block %q has no content: %w", info.Name, apperr.ErrParsing)
	}

	if !strings.HasPrefix(rest, lang.BlockMarker) {
		return models.Block{}, input, fmt.Errorf("parser: block %q is not closed by %q: %w", info.Name, lang.BlockMarker, apperr.ErrParsing)
	}
	rest = rest[len(lang.BlockMarker):]

	return models.Block{Info: info, Content: content}, rest, nil
}

// ParseHeader parses "[name|template]" at the start of input. Both parts are
// trimmed of surrounding whitespace and may be empty.
func ParseHeader(input string) (models.BlockInfo, string, error) {
	if !strings.HasPrefix(input, "[") {
		return models.BlockInfo{}, input, fmt.Errorf("parser: header must start with '[': %w", apperr.ErrParsing)
	}
	body := input[1:]

	bar := strings.IndexByte(body, '|')
	if bar < 0 {
		return models.BlockInfo{}, input, fmt.Errorf("parser: header missing '|': %w", apperr.ErrParsing)
	}
	name := body[:bar]
	body = body[bar+1:]

	end := strings.IndexByte(body, ']')
	if end < 0 {
		return models.BlockInfo{}, input, fmt.Errorf("parser: header missing ']': %w", apperr.ErrParsing)
	}
	template := body[:end]

	return models.BlockInfo{
		Name:         strings.TrimSpace(name),
		TemplateName: strings.TrimSpace(template),
	}, body[end+1:], nil
}

// parseContent tries link, embed, code and markdown in that order.
func parseContent(input string, lang models.LanguageConfig) (models.BlockContent, string, error) {
	if item, rest, err := parseLink(input); err == nil {
		return item, rest, nil
	}
	if item, rest, err := parseEmbed(input); err == nil {
		return item, rest, nil
	}
	if item, rest, err := parseCode(input, lang); err == nil {
		return item, rest, nil
	}
	return parseMarkdown(input, lang)
}

// parseLink matches '{' one-or-more chars other than braces '}'.
func parseLink(input string) (models.BlockContent, string, error) {
	if !strings.HasPrefix(input, "{") {
		return models.BlockContent{}, input, errNoMatch
	}
	body := input[1:]
	end := strings.IndexAny(body, "{}")
	if end <= 0 || body[end] != '}' {
		return models.BlockContent{}, input, errNoMatch
	}
	return models.Link(body[:end]), body[end+1:], nil
}

// parseEmbed matches "{{" text up to the next "}}" then "}}".
func parseEmbed(input string) (models.BlockContent, string, error) {
	if !strings.HasPrefix(input, "{{") {
		return models.BlockContent{}, input, errNoMatch
	}
	body := input[2:]
	end := strings.Index(body, "}}")
	if end < 0 {
		return models.BlockContent{}, input, errNoMatch
	}
	return models.Embed(body[:end]), body[end+2:], nil
}

// parseCode matches multiline_end, text up to multiline_start, multiline_start.
func parseCode(input string, lang models.LanguageConfig) (models.BlockContent, string, error) {
	if lang.MultilineEnd == "" || lang.MultilineStart == "" || !strings.HasPrefix(input, lang.MultilineEnd) {
		return models.BlockContent{}, input, errNoMatch
	}
	body := input[len(lang.MultilineEnd):]
	end := strings.Index(body, lang.MultilineStart)
	if end < 0 {
		return models.BlockContent{}, input, errNoMatch
	}
	return models.Code(body[:end]), body[end+len(lang.MultilineStart):], nil
}

// parseMarkdown consumes text up to, not including, the first block marker,
// multiline_end or '{'. An empty run or input without any stop token does not
// match.
func parseMarkdown(input string, lang models.LanguageConfig) (models.BlockContent, string, error) {
	end := -1
	for _, stop := range []string{lang.BlockMarker, lang.MultilineEnd, "{"} {
		if stop == "" {
			continue
		}
		if i := strings.Index(input, stop); i >= 0 && (end < 0 || i < end) {
			end = i
		}
	}
	if end <= 0 {
		return models.BlockContent{}, input, errNoMatch
	}
	return models.Markdown(input[:end]), input[end:], nil
}

// wsTag consumes optional whitespace, tag, and optional whitespace.
func wsTag(input, tag string) (string, bool) {
	s := strings.TrimLeftFunc(input, unicode.IsSpace)
	if tag == "" || !strings.HasPrefix(s, tag) {
		return input, false
	}
	return strings.TrimLeftFunc(s[len(tag):], unicode.IsSpace), true
}
