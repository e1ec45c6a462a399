//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS blocks_fts USING fts5(
			name,
			template UNINDEXED,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, name, template, body string) error {
	_, _ = tx.Exec(`DELETE FROM blocks_fts WHERE name = ?`, name)
	_, err := tx.Exec(`INSERT INTO blocks_fts (name, template, body) VALUES (?, ?, ?)`,
		name, template, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsClear(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM blocks_fts`)
}

// Search performs an FTS5 full-text search and returns matching blocks with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT name,
		       template,
		       snippet(blocks_fts, 2, '<b>', '</b>', '...', 64)
		FROM blocks_fts
		WHERE blocks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
