package index

import (
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/store"
)

// Persister defines the persistence and search operations used by the build
// pipeline and the serving layer. Consumers depend on this interface rather
// than the concrete *DB type.
type Persister interface {
	SaveSnapshot(snap store.Snapshot) error
	LoadSnapshot() (store.Snapshot, error)
	ReplaceFiles(files []models.SourceFile) error
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Persister at compile time.
var _ Persister = (*DB)(nil)
