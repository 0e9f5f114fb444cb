package templates_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-comunas/internal/templates"
)

type region struct {
	Code       int
	Name       string
	ParentCode int
	ParentName string
}

func newRenderer(t *testing.T) *templates.Renderer {
	t.Helper()
	r, err := templates.New()
	require.NoError(t, err)
	return r
}

func TestSignalKey(t *testing.T) {
	assert.Equal(t, "color_3", templates.SignalKey("color-3"))
	assert.Equal(t, "color_10", templates.SignalKey("color-10"))
	assert.Equal(t, "plain", templates.SignalKey("plain"))
}

func TestRender_Fragments(t *testing.T) {
	r := newRenderer(t)

	tests := []struct {
		name string
		tmpl string
		data any
		want []string
		not  []string
	}{
		{
			name: "status loading",
			tmpl: "status",
			data: map[string]any{"Status": "loading"},
			want: []string{"Cargando información"},
		},
		{
			name: "status ready",
			tmpl: "status",
			data: map[string]any{"Status": "ready", "Regions": 346},
			want: []string{"346 comunas cargadas", "status--ready"},
		},
		{
			name: "status error",
			tmpl: "status",
			data: map[string]any{"Status": "error", "Message": "dataset unavailable"},
			want: []string{"status--error", "dataset unavailable"},
		},
		{
			name: "selection empty",
			tmpl: "selection",
			data: map[string]any{"Region": nil},
			want: []string{"Sin selección", "empty-state"},
			not:  []string{"selection-card"},
		},
		{
			name: "selection with region",
			tmpl: "selection",
			data: map[string]any{
				"Region":  &region{Code: 13101, Name: "Santiago", ParentCode: 13, ParentName: "Metropolitana"},
				"ColorID": "color-3",
				"Colors": []map[string]any{
					{"ID": "color-3", "Hex": "#ffe119", "Label": "Yellow", "Active": true},
					{"ID": "color-4", "Hex": "#bfef45", "Label": "Lime", "Active": false},
				},
			},
			want: []string{
				`id="selection-13101"`,
				"Santiago",
				"CUT 13101",
				"swatch--active",
				"/api/v1/panel/assign/color-4",
				"/api/v1/panel/clear",
			},
			not: []string{"disabled"},
		},
		{
			name: "selection without color disables clear",
			tmpl: "selection",
			data: map[string]any{
				"Region": &region{Code: 101, Name: "Alfa"},
				"Colors": []map[string]any{},
			},
			want: []string{"disabled"},
		},
		{
			name: "legend",
			tmpl: "legend",
			data: map[string]any{
				"ExportFile": "comunas_coloreadas.csv",
				"Groups": []map[string]any{
					{"ID": "color-1", "Hex": "#e6194b", "Label": "Red", "Count": 1,
						"Regions": []region{{Code: 101, Name: "Alfa"}}},
					{"ID": "color-2", "Hex": "#f58231", "Label": "Orange", "Count": 0},
				},
			},
			want: []string{
				`data-bind="legend.color_1"`,
				"/api/v1/panel/legend/color-2",
				"Alfa",
				`download="comunas_coloreadas.csv"`,
				"/api/v1/panel/clear-all",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.tmpl, tt.data)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, out, n)
			}
		})
	}
}

func TestExecute_Index(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	err := r.Execute(&buf, "index", map[string]any{
		"Title":  "Mapa de comunas de Chile",
		"Status": map[string]any{"Status": "loading"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Mapa de comunas de Chile</title>")
	assert.Contains(t, out, "/api/v1/panel/events")
	assert.Contains(t, out, "leaflet")
	assert.Contains(t, out, "map-state-changed")
}

func TestRender_Unknown(t *testing.T) {
	_, err := newRenderer(t).Render("missing", nil)
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fragments"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(`{{define "index"}}custom {{.}}{{end}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fragments", "status.html"), []byte(`{{define "status"}}s{{end}}`), 0644))

	r := newRenderer(t)
	require.NoError(t, r.Reload(dir))

	out, err := r.Render("index", "page")
	require.NoError(t, err)
	assert.Equal(t, "custom page", out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(`{{define "index"}}edited {{.}}{{end}}`), 0644))
	require.NoError(t, r.Refresh())
	out, err = r.Render("index", "page")
	require.NoError(t, err)
	assert.Equal(t, "edited page", out)
}

func TestRefresh_Embedded(t *testing.T) {
	r := newRenderer(t)
	require.NoError(t, r.Refresh())
	out, err := r.Render("status", map[string]any{"Status": "loading"})
	require.NoError(t, err)
	assert.Contains(t, out, "Cargando")
}
