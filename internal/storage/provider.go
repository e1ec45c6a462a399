// Package storage defines the source-tree file-system abstraction.
package storage

import "github.com/starford/anubis/internal/models"

// Provider is the interface for source-tree file operations.
type Provider interface {
	// List returns metadata for every non-ignored file under dir (relative to root).
	List(dir string) ([]models.SourceFile, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Ignored reports whether path (relative to root) matches an ignore pattern.
	Ignored(path string) bool
}
