package palette_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-comunas/internal/palette"
)

func TestDefault(t *testing.T) {
	p := palette.Default()

	require.Len(t, p.Colors(), palette.Size)
	assert.Equal(t, "color-1", p.IDs()[0])
	assert.Equal(t, "color-10", p.IDs()[9])

	c, ok := p.ByID("color-3")
	require.True(t, ok)
	assert.Equal(t, "#ffe119", c.Hex)
	assert.Equal(t, "Yellow", c.DefaultLabel)

	assert.False(t, p.Contains("color-11"))
	assert.Equal(t, palette.DefaultGray, p.Hex("nope"))
	assert.Len(t, p.DefaultLabels(), palette.Size)
}

func TestNew_Rejects(t *testing.T) {
	good := palette.Default().Colors()

	tests := []struct {
		name   string
		mutate func([]palette.Color) []palette.Color
	}{
		{"too_few", func(c []palette.Color) []palette.Color { return c[:9] }},
		{"bad_hex", func(c []palette.Color) []palette.Color { c[2].Hex = "yellow"; return c }},
		{"missing_label", func(c []palette.Color) []palette.Color { c[0].DefaultLabel = ""; return c }},
		{"duplicate_id", func(c []palette.Color) []palette.Color { c[1].ID = c[0].ID; return c }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			colors := make([]palette.Color, len(good))
			copy(colors, good)
			_, err := palette.New(tt.mutate(colors))
			assert.Error(t, err)
		})
	}
}

func TestColors_ReturnsCopy(t *testing.T) {
	p := palette.Default()
	colors := p.Colors()
	colors[0].Hex = "#000000"
	assert.Equal(t, "#e6194b", p.Hex("color-1"))
}

func TestLoad(t *testing.T) {
	yml := "colors:\n"
	for i, c := range palette.Default().Colors() {
		label := c.DefaultLabel
		if i == 0 {
			label = "Rojo"
		}
		yml += "  - id: " + c.ID + "\n    hex: \"" + c.Hex + "\"\n    defaultLabel: " + label + "\n"
	}
	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	p, err := palette.Load(path)
	require.NoError(t, err)
	c, _ := p.ByID("color-1")
	assert.Equal(t, "Rojo", c.DefaultLabel)

	p, err = palette.Load("")
	require.NoError(t, err)
	assert.Equal(t, palette.Default().Colors(), p.Colors())

	_, err = palette.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
