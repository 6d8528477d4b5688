package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

func newRenderer(t *testing.T, files map[string]string) *Renderer {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	r, err := New(routeconfig.Resources{Root: root, Views: "views", Layouts: "layouts"})
	require.NoError(t, err)
	return r
}

func TestRenderHTMLTemplateWithData(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"views/movies.html": `<ul>{{range .rows}}<li>{{.label}}</li>{{end}}</ul>`,
	})

	out, err := r.Render("movies.html", map[string]any{
		"rows": []map[string]any{{"label": "Seven"}, {"label": "Fight Club"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `<ul><li>Seven</li><li>Fight Club</li></ul>`, string(out))
}

func TestRenderHTMLEscapesData(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"views/page.html": `<p>{{.label}}</p>`,
	})

	out, err := r.Render("page.html", map[string]any{"label": `<script>`})
	require.NoError(t, err)
	assert.Equal(t, `<p>&lt;script&gt;</p>`, string(out))
}

func TestRenderMarkdownThroughGoldmark(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"views/about.md": "# {{.title}}\n",
	})

	out, err := r.Render("about.md", map[string]any{"title": "Movies"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>Movies</h1>")
}

func TestRenderAppliesLayoutFromFrontMatter(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"views/movies.html": "---\nlayout: main.html\n---\n<p>body</p>",
		"layouts/main.html": `<html><body>{{.content}}</body></html>`,
	})

	out, err := r.Render("movies.html", nil)
	require.NoError(t, err)
	assert.Equal(t, `<html><body><p>body</p></body></html>`, string(out))
}

func TestRenderMissingTemplate(t *testing.T) {
	r := newRenderer(t, nil)

	_, err := r.Render("nope.html", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
	assert.False(t, r.Has("nope.html"))
}

func TestRenderRefusesPathEscape(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"secret.html": `classified`,
	})

	// Joining under the views dir strips the traversal, so the file
	// outside it stays unreachable.
	_, err := r.Render("../secret.html", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
}

func TestRenderReloadsChangedTemplate(t *testing.T) {
	root := t.TempDir()
	views := filepath.Join(root, "views")
	require.NoError(t, os.MkdirAll(views, 0o755))
	path := filepath.Join(views, "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`one`), 0o644))

	r, err := New(routeconfig.Resources{Root: root, Views: "views", Layouts: "layouts"})
	require.NoError(t, err)

	out, err := r.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "one", string(out))

	require.NoError(t, os.WriteFile(path, []byte(`twotwo`), 0o644))

	out, err = r.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "twotwo", string(out))
}

func TestHasReportsExistingTemplates(t *testing.T) {
	r := newRenderer(t, map[string]string{
		"views/found.html": `x`,
	})

	assert.True(t, r.Has("found.html"))
	assert.False(t, r.Has("missing.html"))
	assert.False(t, r.Has(""))
}
