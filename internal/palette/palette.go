// Package palette holds the fixed set of ten selectable group colors.
package palette

import (
	"fmt"
	"os"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Size is the number of colors every palette must carry.
const Size = 10

// DefaultGray is the fill used for regions without a recognized color.
const DefaultGray = "#c5c6cb"

var validate = validator.New()

// Color is one selectable group color.
type Color struct {
	ID           string `json:"id" yaml:"id" validate:"required" doc:"Color identifier" example:"color-3"`
	Hex          string `json:"hex" yaml:"hex" validate:"required,hexcolor" doc:"CSS hex value" example:"#ffe119"`
	DefaultLabel string `json:"defaultLabel" yaml:"defaultLabel" validate:"required" doc:"Label used until the user renames the group" example:"Yellow"`
}

type config struct {
	Colors []Color `yaml:"colors" validate:"len=10,dive"`
}

// Palette is an immutable, ordered list of colors with an id lookup.
type Palette struct {
	colors []Color
	byID   map[string]Color
}

// New validates colors and builds a palette from them.
func New(colors []Color) (*Palette, error) {
	if err := validate.Struct(config{Colors: colors}); err != nil {
		return nil, fmt.Errorf("invalid palette: %w", err)
	}

	p := &Palette{
		colors: make([]Color, len(colors)),
		byID:   make(map[string]Color, len(colors)),
	}
	copy(p.colors, colors)
	for _, c := range colors {
		if _, dup := p.byID[c.ID]; dup {
			return nil, fmt.Errorf("invalid palette: duplicate color id %q", c.ID)
		}
		p.byID[c.ID] = c
	}
	return p, nil
}

// Default returns the built-in palette.
func Default() *Palette {
	p, err := New([]Color{
		{ID: "color-1", Hex: "#e6194b", DefaultLabel: "Red"},
		{ID: "color-2", Hex: "#f58231", DefaultLabel: "Orange"},
		{ID: "color-3", Hex: "#ffe119", DefaultLabel: "Yellow"},
		{ID: "color-4", Hex: "#bfef45", DefaultLabel: "Lime"},
		{ID: "color-5", Hex: "#3cb44b", DefaultLabel: "Green"},
		{ID: "color-6", Hex: "#42d4f4", DefaultLabel: "Cyan"},
		{ID: "color-7", Hex: "#4363d8", DefaultLabel: "Blue"},
		{ID: "color-8", Hex: "#911eb4", DefaultLabel: "Purple"},
		{ID: "color-9", Hex: "#f032e6", DefaultLabel: "Magenta"},
		{ID: "color-10", Hex: "#dcbeff", DefaultLabel: "Lavender"},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// Load reads a palette from a YAML file with a top-level "colors" list.
// An empty path returns the default palette.
func Load(path string) (*Palette, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading palette: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing palette: %w", err)
	}
	return New(cfg.Colors)
}

// Colors returns the colors in palette order.
func (p *Palette) Colors() []Color {
	out := make([]Color, len(p.colors))
	copy(out, p.colors)
	return out
}

// IDs returns the color identifiers in palette order.
func (p *Palette) IDs() []string {
	ids := make([]string, len(p.colors))
	for i, c := range p.colors {
		ids[i] = c.ID
	}
	return ids
}

// ByID looks up a color.
func (p *Palette) ByID(id string) (Color, bool) {
	c, ok := p.byID[id]
	return c, ok
}

// Contains reports whether id names a palette color.
func (p *Palette) Contains(id string) bool {
	_, ok := p.byID[id]
	return ok
}

// Hex returns the hex value for id, or DefaultGray when id is unknown.
func (p *Palette) Hex(id string) string {
	if c, ok := p.byID[id]; ok {
		return c.Hex
	}
	return DefaultGray
}

// DefaultLabels returns a fresh id -> default label map.
func (p *Palette) DefaultLabels() map[string]string {
	labels := make(map[string]string, len(p.colors))
	for _, c := range p.colors {
		labels[c.ID] = c.DefaultLabel
	}
	return labels
}
