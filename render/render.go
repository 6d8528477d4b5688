// Package render loads and executes response templates. The engine is
// picked by file extension: .html, .tmpl and .gohtml are Go HTML
// templates, .md is Go-templated Markdown rendered through goldmark. A
// YAML front matter block may name a layout that wraps the rendered
// body.
package render

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/pkg/cache"
	"github.com/c360/semserve/routeconfig"
)

const frontMatterFence = "---"

// compiled is a parsed template plus the file state it was parsed from,
// so edits on disk invalidate the cache entry.
type compiled struct {
	layout  string
	ext     string
	html    *htmltemplate.Template
	text    *texttemplate.Template
	modTime time.Time
	size    int64
}

// Renderer resolves template names against the configured views and
// layouts directories and executes them.
type Renderer struct {
	viewsDir   string
	layoutsDir string
	templates  cache.Cache[*compiled]
	log        *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRenderLogger sets the renderer logger.
func WithRenderLogger(log *slog.Logger) Option {
	return func(r *Renderer) {
		r.log = log
	}
}

// New creates a renderer rooted at the resource directories.
func New(res routeconfig.Resources, options ...Option) (*Renderer, error) {
	templates, err := cache.NewSimple[*compiled]()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		viewsDir:   filepath.Join(res.Root, res.Views),
		layoutsDir: filepath.Join(res.Root, res.Layouts),
		templates:  templates,
		log:        slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Render executes the named view template with data. When the view's
// front matter names a layout, the rendered body is handed to the layout
// template as .content.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	view, err := r.load(r.viewsDir, name)
	if err != nil {
		return nil, err
	}

	body, err := execute(view, data)
	if err != nil {
		return nil, errors.WrapConversion(err, "render", "Render",
			fmt.Sprintf("template %q failed to execute", name))
	}

	if view.layout == "" {
		return body, nil
	}

	layout, err := r.load(r.layoutsDir, view.layout)
	if err != nil {
		return nil, err
	}
	wrapped, err := execute(layout, map[string]any{
		"content": htmltemplate.HTML(body),
		"data":    data,
	})
	if err != nil {
		return nil, errors.WrapConversion(err, "render", "Render",
			fmt.Sprintf("layout %q failed to execute", view.layout))
	}
	return wrapped, nil
}

// Has reports whether the named view template exists.
func (r *Renderer) Has(name string) bool {
	if name == "" {
		return false
	}
	path, err := securePath(r.viewsDir, name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *Renderer) load(dir, name string) (*compiled, error) {
	path, err := securePath(dir, name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(
			fmt.Errorf("%w: %s", errors.ErrTemplateNotFound, name),
			"render", "load", fmt.Sprintf("template %q does not exist", name))
	}

	if cached, ok := r.templates.Get(path); ok {
		if cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
			return cached, nil
		}
		_, _ = r.templates.Delete(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "render", "load",
			fmt.Sprintf("template %q could not be read", name))
	}

	layout, body := splitFrontMatter(string(raw))
	c := &compiled{
		layout:  layout,
		ext:     strings.ToLower(filepath.Ext(path)),
		modTime: info.ModTime(),
		size:    info.Size(),
	}

	switch c.ext {
	case ".md":
		c.text, err = texttemplate.New(name).Parse(body)
	case ".html", ".tmpl", ".gohtml":
		c.html, err = htmltemplate.New(name).Parse(body)
	default:
		err = fmt.Errorf("unsupported template extension %q", c.ext)
	}
	if err != nil {
		return nil, errors.WrapConversion(err, "render", "load",
			fmt.Sprintf("template %q could not be parsed", name))
	}

	if _, err := r.templates.Set(path, c); err != nil {
		r.log.Warn("could not cache compiled template", "template", name, "error", err)
	}
	return c, nil
}

func execute(c *compiled, data any) ([]byte, error) {
	var buf bytes.Buffer
	switch {
	case c.html != nil:
		if err := c.html.Execute(&buf, data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case c.text != nil:
		if err := c.text.Execute(&buf, data); err != nil {
			return nil, err
		}
		var html bytes.Buffer
		if err := goldmark.Convert(buf.Bytes(), &html); err != nil {
			return nil, err
		}
		return html.Bytes(), nil
	default:
		return nil, fmt.Errorf("template has no engine")
	}
}

// splitFrontMatter extracts the layout declared in a leading YAML front
// matter block, returning the remaining body.
func splitFrontMatter(raw string) (layout, body string) {
	if !strings.HasPrefix(raw, frontMatterFence+"\n") && !strings.HasPrefix(raw, frontMatterFence+"\r\n") {
		return "", raw
	}
	rest := raw[strings.Index(raw, "\n")+1:]
	end := strings.Index(rest, "\n"+frontMatterFence)
	if end < 0 {
		return "", raw
	}

	var fm struct {
		Layout string `yaml:"layout"`
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return "", raw
	}

	body = rest[end+1+len(frontMatterFence):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return fm.Layout, body
}

// securePath joins name under dir, refusing escapes above it.
func securePath(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.Clean("/"+name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errors.WrapInvalid(
			fmt.Errorf("template name %q escapes the template directory", name),
			"render", "securePath", "refusing a template path outside the configured directory")
	}
	return path, nil
}
