package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/anubis/internal/apperr"
)

func TestLoadTemplates_Builtin(t *testing.T) {
	tpls, err := LoadTemplates("")
	require.NoError(t, err)
	for _, name := range []string{DefaultTemplate, PageTemplate, IndexTemplate} {
		assert.True(t, tpls.Has(name), name)
	}
}

func TestLoadTemplates_DirOverridesAndAdds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Enum.html"), []byte(`<div class="enum">{{.Content}}</div>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.html"), []byte(`<div>{{.Name}}</div>`), 0o644))

	tpls, err := LoadTemplates(dir)
	require.NoError(t, err)

	out, err := tpls.Execute("Enum", PageData{Content: "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, `<div class="enum"><b>x</b></div>`, out)

	out, err = tpls.Execute("default", PageData{Name: "N"})
	require.NoError(t, err)
	assert.Equal(t, `<div>N</div>`, out)
}

func TestExecute_UnknownFallsBackToDefault(t *testing.T) {
	tpls, err := LoadTemplates("")
	require.NoError(t, err)
	out, err := tpls.Execute("NoSuchTemplate", PageData{Name: "X", Content: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Contains(t, out, `id="X"`)
	assert.Contains(t, out, "<p>hi</p>")
}

func TestExecute_BindingFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.html"), []byte(`{{.Missing.Field}}`), 0o644))
	tpls, err := LoadTemplates(dir)
	require.NoError(t, err)

	_, err = tpls.Execute("bad", PageData{})
	assert.ErrorIs(t, err, apperr.ErrContext)
}

func TestGoMarkdown_ToHTML(t *testing.T) {
	out, err := NewGoMarkdown().ToHTML(" #markdown ")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>")
	assert.Contains(t, out, "#markdown")
}
