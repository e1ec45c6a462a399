// Package apperr holds the sentinel errors shared across Anubis packages.
// Callers wrap them with fmt.Errorf("...: %w") and test with errors.Is.
package apperr

import "errors"

var (
	// ErrParsing reports malformed block syntax in a source file.
	ErrParsing = errors.New("parsing error")
	// ErrConfig reports a missing language binding or invalid configuration.
	ErrConfig = errors.New("config error")
	// ErrRecursiveTemplate reports an embed cycle.
	ErrRecursiveTemplate = errors.New("recursive template")
	// ErrPageNotFound reports a missing rendered page.
	ErrPageNotFound = errors.New("page not found")
	// ErrRenderFailed reports a known block without a rendering because its
	// render pass failed.
	ErrRenderFailed = errors.New("render failed")
	// ErrBlockNotFound reports a missing block name.
	ErrBlockNotFound = errors.New("block not found")
	// ErrConnectionsNotFound reports a known block without a graph entry.
	// It is a data-integrity violation, never a user input error.
	ErrConnectionsNotFound = errors.New("connections not found")
	// ErrContext reports a template binding failure.
	ErrContext = errors.New("context error")
)
