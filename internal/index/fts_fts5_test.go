//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/anubis/internal/store"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM blocks_fts`).Scan(&count); err != nil {
		t.Fatalf("blocks_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSnapshot(sampleStore().Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	results, err := db.Search("handbook", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_SaveReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.SaveSnapshot(sampleStore().Snapshot())
	_ = db.SaveSnapshot(store.New().Snapshot())

	results, _ := db.Search("handbook", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
}
