package index

import (
	"os"
	"testing"
	"time"

	"github.com/starford/anubis/internal/graph"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "anubis-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var rustLang = models.LanguageConfig{
	Language:       "rust",
	BlockMarker:    "@",
	LineComment:    "//",
	MultilineStart: "/*",
	MultilineEnd:   "*/",
}

func sampleStore() *store.Store {
	s := store.New()
	s.Insert(models.Block{
		Info:   models.BlockInfo{Name: "Intro", TemplateName: "page"},
		Origin: "src/lib.rs",
		Content: []models.BlockContent{
			models.Markdown("Welcome to the anubis handbook"),
			models.Link("Setup"),
			models.Embed("Shared"),
		},
	}, rustLang)
	s.Insert(models.Block{
		Info:    models.BlockInfo{Name: "Shared", TemplateName: "default"},
		Origin:  "src/shared.rs",
		Content: []models.BlockContent{models.Code("fn shared() {}")},
	}, rustLang)
	s.SetHTML("Intro", "<p>intro</p>")
	return s
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"blocks", "refs", "pages", "files"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)
	want := sampleStore()
	if err := db.SaveSnapshot(want.Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	got := store.FromSnapshot(snap)

	if got.Len() != 2 {
		t.Fatalf("expected 2 blocks, got %d", got.Len())
	}
	b, err := got.Block("Intro")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if b.Origin != "src/lib.rs" || b.Info.TemplateName != "page" || len(b.Content) != 3 {
		t.Errorf("unexpected block: %+v", b)
	}
	if b.Content[2].Kind != models.KindEmbed || b.Content[2].Text != "Shared" {
		t.Errorf("content[2] = %+v", b.Content[2])
	}
	lang, err := got.Language("Shared")
	if err != nil || lang != rustLang {
		t.Errorf("Language = %+v, %v", lang, err)
	}
	if html, ok := got.HTML("Intro"); !ok || html != "<p>intro</p>" {
		t.Errorf("HTML = %q, %v", html, ok)
	}
	if k := got.EdgeKind("Intro", "Setup"); !k.Has(graph.KindLink) {
		t.Errorf("Intro-Setup kind = %v", k)
	}
	nb, err := got.Neighbors("Setup")
	if err != nil || len(nb) != 1 || nb[0] != "Intro" {
		t.Errorf("Neighbors(Setup) = %v, %v", nb, err)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSnapshot(sampleStore().Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := db.SaveSnapshot(store.New().Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot empty: %v", err)
	}
	snap, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Blocks) != 0 || len(snap.References) != 0 || len(snap.Pages) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestLoadSnapshot_Empty(t *testing.T) {
	db := testDB(t)
	snap, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Blocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(snap.Blocks))
	}
	if snap.Languages == nil || snap.Pages == nil {
		t.Error("maps should be initialised")
	}
}

func TestReplaceFilesAndChecksums(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	files := []models.SourceFile{
		{Path: "a.rs", Checksum: "c1", UpdatedAt: now},
		{Path: "b.rs", Checksum: "c2", UpdatedAt: now},
	}
	if err := db.ReplaceFiles(files); err != nil {
		t.Fatalf("ReplaceFiles: %v", err)
	}
	if err := db.ReplaceFiles(files[1:]); err != nil {
		t.Fatalf("ReplaceFiles: %v", err)
	}
	sums, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(sums) != 1 || sums["b.rs"] != "c2" {
		t.Errorf("checksums = %v", sums)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSnapshot(sampleStore().Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	results, err := db.Search("handbook", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Intro" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Template != "page" {
		t.Errorf("template = %q", results[0].Template)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	db := testDB(t)
	_ = db.SaveSnapshot(sampleStore().Snapshot())
	results, err := db.Search("nonexistent", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBlockText(t *testing.T) {
	b := models.Block{Content: []models.BlockContent{
		models.Markdown("  first  "),
		models.Markdown("   "),
		models.Code("x := 1"),
	}}
	if got := BlockText(b); got != "first\nx := 1" {
		t.Errorf("BlockText = %q", got)
	}
}
