package build

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/anubis/internal/lang"
	"github.com/starford/anubis/internal/metrics"
	"github.com/starford/anubis/internal/models"
	"github.com/starford/anubis/internal/render"
	"github.com/starford/anubis/internal/storage"
	"github.com/starford/anubis/internal/store"
	tu "github.com/starford/anubis/internal/testutil"
)

var sourceTree = map[string]string{
	"src/lib.rs":    "fn main() {}\n/* @[Intro|] Welcome {Setup} {{Shared}} @ */\n",
	"src/shared.rs": "/* @[Shared|] shared *text* @ */\n",
	"src/bad.rs":    "/* @[Broken|x @ */\n",
	"notes.txt":     "plain text, no binding\n",
	"site.anubis":   "app: {}\n",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBuilder(t *testing.T, src storage.Provider, m *metrics.Metrics) *Builder {
	t.Helper()
	tpl, err := render.LoadTemplates("")
	require.NoError(t, err)
	return New(Options{
		Source:    src,
		Languages: lang.Default(),
		Markdown:  render.NewGoMarkdown(),
		Templates: tpl,
		BaseURL:   "/",
		Metrics:   m,
		Logger:    quietLogger(),
	})
}

func TestParse(t *testing.T) {
	_, src := tu.TestSource(t, sourceTree, "*.anubis")
	m := metrics.New()
	b := newBuilder(t, src, m)

	st := store.New()
	rep, err := b.Parse(st)
	require.NoError(t, err)

	assert.Len(t, rep.Files, 4)
	assert.Equal(t, 2, rep.Scanned)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, rep.Blocks)
	assert.Equal(t, []string{"Intro", "Shared"}, st.Names())

	intro, err := st.Block("Intro")
	require.NoError(t, err)
	assert.Equal(t, "src/lib.rs", intro.Origin)

	nb, err := st.Neighbors("Intro")
	require.NoError(t, err)
	assert.Equal(t, []string{"Setup", "Shared"}, nb)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped.WithLabelValues(metrics.ReasonParsing)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped.WithLabelValues(metrics.ReasonLanguage)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Blocks))
}

func TestRenderAll(t *testing.T) {
	_, src := tu.TestSource(t, sourceTree, "*.anubis")
	m := metrics.New()
	b := newBuilder(t, src, m)

	st, rep, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Render.Rendered)

	html, ok := st.HTML("Intro")
	require.True(t, ok)
	assert.Contains(t, html, `<a href="/Setup">Setup</a>`)
	assert.Contains(t, html, `<em>text</em>`)
	assert.Contains(t, html, `id="Shared"`)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Renders.WithLabelValues("ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BuildDuration), "one series per phase")
}

func TestRenderAll_FailuresDoNotAbort(t *testing.T) {
	st := store.New()
	lng := lang.Default()["rs"]
	st.Insert(models.Block{Info: models.BlockInfo{Name: "A"}, Content: []models.BlockContent{models.Embed("B")}}, lng)
	st.Insert(models.Block{Info: models.BlockInfo{Name: "B"}, Content: []models.BlockContent{models.Embed("A")}}, lng)
	st.Insert(models.Block{Info: models.BlockInfo{Name: "C"}, Content: []models.BlockContent{models.Markdown("fine")}}, lng)
	st.Insert(models.Block{Info: models.BlockInfo{Name: "D"}, Content: []models.BlockContent{models.Embed("Missing")}}, lng)

	_, src := tu.TestSource(t, nil)
	b := newBuilder(t, src, nil)
	rep := b.RenderAll(st)

	assert.Equal(t, 1, rep.Rendered)
	assert.Equal(t, 3, rep.Failed)
	_, ok := st.HTML("C")
	assert.True(t, ok)
	_, ok = st.HTML("A")
	assert.False(t, ok)
}

func TestRenderAll_ClearsCache(t *testing.T) {
	st := store.New()
	st.Insert(models.Block{Info: models.BlockInfo{Name: "A"}, Content: []models.BlockContent{models.Markdown("fresh")}}, lang.Default()["rs"])
	st.SetHTML("A", "stale")

	_, src := tu.TestSource(t, nil)
	newBuilder(t, src, nil).RenderAll(st)

	html, _ := st.HTML("A")
	assert.True(t, strings.Contains(html, "fresh"), html)
}

func TestPersist(t *testing.T) {
	_, src := tu.TestSource(t, sourceTree, "*.anubis")
	b := newBuilder(t, src, nil)
	st, rep, err := b.Build()
	require.NoError(t, err)

	db := tu.TestDB(t)
	require.NoError(t, Persist(db, st, rep.Parse.Files))

	snap, err := db.LoadSnapshot()
	require.NoError(t, err)
	loaded := store.FromSnapshot(snap)
	assert.Equal(t, st.Names(), loaded.Names())
	want, _ := st.HTML("Intro")
	got, _ := loaded.HTML("Intro")
	assert.Equal(t, want, got)

	sums, err := db.AllChecksums()
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(rep.Parse.Files), sums)
}

func TestStale(t *testing.T) {
	root, src := tu.TestSource(t, sourceTree, "*.anubis")
	b := newBuilder(t, src, nil)
	st, rep, err := b.Build()
	require.NoError(t, err)

	db := tu.TestDB(t)
	require.NoError(t, Persist(db, st, rep.Parse.Files))

	stale, err := Stale(db, src)
	require.NoError(t, err)
	assert.False(t, stale)

	tu.WriteFile(t, root, "src/shared.rs", "/* @[Shared|] edited @ */\n")
	stale, err = Stale(db, src)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestChanged(t *testing.T) {
	a := map[string]string{"x": "1", "y": "2"}
	assert.False(t, Changed(a, map[string]string{"x": "1", "y": "2"}))
	assert.True(t, Changed(a, map[string]string{"x": "1", "y": "3"}))
	assert.True(t, Changed(a, map[string]string{"x": "1"}))
	assert.True(t, Changed(a, map[string]string{"x": "1", "z": "2"}))
}
