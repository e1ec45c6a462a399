//go:build !sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/store"
)

func TestSearch_WildcardsMatchLiterally(t *testing.T) {
	db := testDB(t)
	s := store.New()
	for name, text := range map[string]string{
		"Plan_A": "rollout at 100% done",
		"PlanXA": "rollout at 100 units",
		"Paths":  `see C:\temp for logs`,
	} {
		s.Insert(models.Block{
			Info:    models.BlockInfo{Name: name, TemplateName: "page"},
			Content: []models.BlockContent{models.Markdown(text)},
		}, rustLang)
	}
	if err := db.SaveSnapshot(s.Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	for _, tc := range []struct {
		query string
		want  []string
	}{
		{"n_A", []string{"Plan_A"}},
		{"0%", []string{"Plan_A"}},
		{`C:\temp`, []string{"Paths"}},
		{"%", []string{"Plan_A"}},
		{"rollout", []string{"PlanXA", "Plan_A"}},
	} {
		results, err := db.Search(tc.query, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", tc.query, err)
		}
		var got []string
		for _, r := range results {
			got = append(got, r.Name)
		}
		if len(got) != len(tc.want) {
			t.Errorf("Search(%q) = %v, want %v", tc.query, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Search(%q) = %v, want %v", tc.query, got, tc.want)
				break
			}
		}
	}
}
