// Package templates renders the HTML page and the Datastar panel fragments.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed *.html fragments/*.html
var embedded embed.FS

var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// signal turns a color id into a valid Datastar signal name
	"signal": SignalKey,
}

// SignalKey maps a color id such as "color-3" to "color_3".
func SignalKey(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}

// Renderer manages the page and fragment templates.
type Renderer struct {
	templates *template.Template
	dir       string
	mu        sync.RWMutex
}

// New creates a renderer from the templates compiled into the binary.
func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(embedded, "*.html", "fragments/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	return r.Execute(buf, name, data)
}

// Execute renders a named template to w.
func (r *Renderer) Execute(w io.Writer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.ExecuteTemplate(w, name, data)
}

// Reload replaces the templates with the *.html files under dir and
// dir/fragments, and remembers dir for [Renderer.Refresh].
func (r *Renderer) Reload(dir string) error {
	tmpl, err := template.New("").Funcs(funcMap).ParseGlob(filepath.Join(dir, "*.html"))
	if err != nil {
		return err
	}
	if _, err := tmpl.ParseGlob(filepath.Join(dir, "fragments", "*.html")); err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.dir = dir
	r.mu.Unlock()

	return nil
}

// Refresh re-reads the directory given to Reload so edited templates show up
// without a restart. It does nothing for the embedded set.
func (r *Renderer) Refresh() error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	if dir == "" {
		return nil
	}
	return r.Reload(dir)
}
