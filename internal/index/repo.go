package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/anubis/internal/graph"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/store"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Name     string `json:"name"`
	Template string `json:"template"`
	Snippet  string `json:"snippet"`
}

// SaveSnapshot replaces the persisted store with snap in one transaction.
func (db *DB) SaveSnapshot(snap store.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"blocks", "refs", "pages"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	ftsClear(tx)

	blockStmt, err := tx.Prepare(`
		INSERT INTO blocks (name, template, origin, content, language, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare block insert: %w", err)
	}
	defer blockStmt.Close()

	for _, b := range snap.Blocks {
		content, err := json.Marshal(b.Content)
		if err != nil {
			return fmt.Errorf("index: encode content of %q: %w", b.Info.Name, err)
		}
		lang, err := json.Marshal(snap.Languages[b.Info.Name])
		if err != nil {
			return fmt.Errorf("index: encode language of %q: %w", b.Info.Name, err)
		}
		body := BlockText(b)
		if _, err := blockStmt.Exec(b.Info.Name, b.Info.TemplateName, b.Origin, string(content), string(lang), body); err != nil {
			return fmt.Errorf("index: insert block %q: %w", b.Info.Name, err)
		}
		if err := ftsUpsert(tx, b.Info.Name, b.Info.TemplateName, body); err != nil {
			return err
		}
	}

	if len(snap.References) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range snap.References {
			if _, err := stmt.Exec(r.Source, r.Target, int(r.Kind)); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	if len(snap.Pages) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO pages (name, html) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare page insert: %w", err)
		}
		defer stmt.Close()
		for name, html := range snap.Pages {
			if _, err := stmt.Exec(name, html); err != nil {
				return fmt.Errorf("index: insert page %q: %w", name, err)
			}
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted store. An empty database yields an empty
// snapshot.
func (db *DB) LoadSnapshot() (store.Snapshot, error) {
	snap := store.Snapshot{
		Languages: make(map[string]models.LanguageConfig),
		Pages:     make(map[string]string),
	}

	rows, err := db.conn.Query(`SELECT name, template, origin, content, language FROM blocks ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("index: load blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			b               models.Block
			content, langJS string
			lang            models.LanguageConfig
		)
		if err := rows.Scan(&b.Info.Name, &b.Info.TemplateName, &b.Origin, &content, &langJS); err != nil {
			return snap, err
		}
		if err := json.Unmarshal([]byte(content), &b.Content); err != nil {
			return snap, fmt.Errorf("index: decode content of %q: %w", b.Info.Name, err)
		}
		if err := json.Unmarshal([]byte(langJS), &lang); err != nil {
			return snap, fmt.Errorf("index: decode language of %q: %w", b.Info.Name, err)
		}
		snap.Blocks = append(snap.Blocks, b)
		snap.Languages[b.Info.Name] = lang
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	if snap.References, err = db.loadRefs(); err != nil {
		return snap, err
	}
	if err := db.loadPages(snap.Pages); err != nil {
		return snap, err
	}
	return snap, nil
}

func (db *DB) loadRefs() ([]graph.Reference, error) {
	rows, err := db.conn.Query(`SELECT source, target, kind FROM refs ORDER BY source, target`)
	if err != nil {
		return nil, fmt.Errorf("index: load refs: %w", err)
	}
	defer rows.Close()
	var out []graph.Reference
	for rows.Next() {
		var (
			r    graph.Reference
			kind int
		)
		if err := rows.Scan(&r.Source, &r.Target, &kind); err != nil {
			return nil, err
		}
		r.Kind = graph.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) loadPages(into map[string]string) error {
	rows, err := db.conn.Query(`SELECT name, html FROM pages`)
	if err != nil {
		return fmt.Errorf("index: load pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, html string
		if err := rows.Scan(&name, &html); err != nil {
			return err
		}
		into[name] = html
	}
	return rows.Err()
}

// ReplaceFiles records the checksums of the files scanned by the last parse
// pass.
func (db *DB) ReplaceFiles(files []models.SourceFile) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM files`); err != nil {
		return fmt.Errorf("index: clear files: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO files (path, checksum, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare file insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.Exec(f.Path, f.Checksum, f.UpdatedAt); err != nil {
			return fmt.Errorf("index: insert file %q: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// AllChecksums returns path → checksum for every recorded file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// BlockText flattens a block into searchable text.
func BlockText(b models.Block) string {
	parts := make([]string, 0, len(b.Content))
	for _, c := range b.Content {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Name, &r.Template, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
