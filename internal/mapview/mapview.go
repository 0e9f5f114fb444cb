// Package mapview holds the rendering policy of the communes map: fill and
// stroke styles derived from the assignment table and selection, and which
// labels are visible for a given zoom and viewport.
package mapview

import (
	"github.com/paulmach/orb"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/palette"
)

// Stroke colors and weights of the commune layer.
const (
	StrokeDefault  = "#ffffff"
	StrokeSelected = "#111827"

	WeightDefault  = 0.6
	WeightSelected = 2

	OpacityDefault  = 0.82
	OpacitySelected = 0.95
)

// DefaultLabelZoom is the zoom from which commune names are drawn.
const DefaultLabelZoom = 5.8

// MinZoom is the farthest the map may zoom out.
const MinZoom = 4

// PathStyle mirrors the Leaflet path options the page applies.
type PathStyle struct {
	FillColor   string  `json:"fillColor" doc:"Fill color" example:"#c5c6cb"`
	Color       string  `json:"color" doc:"Stroke color" example:"#ffffff"`
	Weight      float64 `json:"weight" doc:"Stroke width" example:"0.6"`
	FillOpacity float64 `json:"fillOpacity" doc:"Fill opacity (0-1)" example:"0.82"`
	DashArray   string  `json:"dashArray,omitempty" doc:"Stroke dash pattern" example:"4 4"`
}

// TileLayer describes the basemap.
type TileLayer struct {
	URL         string `json:"url" doc:"Tile URL template" example:"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"`
	Attribution string `json:"attribution" doc:"Attribution HTML"`
}

// DefaultTileLayer is the OpenStreetMap basemap.
var DefaultTileLayer = TileLayer{
	URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: "&copy; OpenStreetMap contributors",
}

// Styler computes region styles from a palette.
type Styler struct {
	palette *palette.Palette
}

// NewStyler creates a styler for p.
func NewStyler(p *palette.Palette) *Styler {
	return &Styler{palette: p}
}

// RegionStyle returns the style of region id. The style depends only on
// the assignment table and the selected id.
func (s *Styler) RegionStyle(id string, assignments map[string]string, selected string) PathStyle {
	fill := palette.DefaultGray
	if c, ok := s.palette.ByID(assignments[id]); ok {
		fill = c.Hex
	}
	if id != "" && id == selected {
		return PathStyle{FillColor: fill, Color: StrokeSelected, Weight: WeightSelected, FillOpacity: OpacitySelected}
	}
	return PathStyle{FillColor: fill, Color: StrokeDefault, Weight: WeightDefault, FillOpacity: OpacityDefault}
}

// Styles returns the style of every indexed region keyed by id.
func (s *Styler) Styles(ds *dataset.Dataset, assignments map[string]string, selected string) map[string]PathStyle {
	out := make(map[string]PathStyle, len(ds.Index))
	for id := range ds.Index {
		out[id] = s.RegionStyle(id, assignments, selected)
	}
	return out
}

// BoundaryStyle is the dashed outline of the top-level regions.
func BoundaryStyle() PathStyle {
	return PathStyle{Color: StrokeSelected, Weight: 2.5, FillOpacity: 0, DashArray: "4 4"}
}

// VisibleLabel is a label ready to draw.
type VisibleLabel struct {
	ID   string  `json:"id" doc:"Region key"`
	Text string  `json:"text" doc:"Label text"`
	Lat  float64 `json:"lat" doc:"Latitude"`
	Lng  float64 `json:"lng" doc:"Longitude"`
}

// LabelPolicy decides which labels are drawn.
type LabelPolicy struct {
	Threshold float64
}

// Visible returns the labels inside viewport when zoom reaches the
// threshold. Below it no labels are returned and showHint is true.
func (p LabelPolicy) Visible(labels []dataset.Label, zoom float64, viewport orb.Bound) (visible []VisibleLabel, showHint bool) {
	visible = []VisibleLabel{}
	if zoom < p.Threshold {
		return visible, true
	}
	lower := cases.Lower(language.Spanish)
	for _, l := range labels {
		if !viewport.Contains(l.Position) {
			continue
		}
		visible = append(visible, VisibleLabel{
			ID:   l.ID,
			Text: lower.String(l.Name),
			Lat:  l.Lat(),
			Lng:  l.Lng(),
		})
	}
	return visible, false
}

// Viewport builds a bound from west/south/east/north edges.
func Viewport(west, south, east, north float64) orb.Bound {
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}
}
