package mapview

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-comunas/internal/dataset"
)

// MaxTileZoom is the deepest zoom vector tiles are cut for.
const MaxTileZoom = 14

// Layer names inside a vector tile.
const (
	TileLayerRegions    = "comunas"
	TileLayerBoundaries = "limites"
)

// ErrTileOutOfRange is returned for tile coordinates outside the zoom grid.
var ErrTileOutOfRange = fmt.Errorf("tile out of range (max zoom %d)", MaxTileZoom)

// Tile validates z/x/y and returns the tile.
func Tile(z, x, y int) (maptile.Tile, error) {
	if z < 0 || z > MaxTileZoom {
		return maptile.Tile{}, ErrTileOutOfRange
	}
	n := 1 << z
	if x < 0 || y < 0 || x >= n || y >= n {
		return maptile.Tile{}, ErrTileOutOfRange
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// VectorTile cuts one Mapbox vector tile from the dataset. Regions carry
// their code, name and current fill; the boundary overlay gets its own layer.
// A tile without any geometry encodes to nil.
func (s *Styler) VectorTile(ds *dataset.Dataset, assignments map[string]string, selected string, t maptile.Tile) ([]byte, error) {
	bound := t.Bound()

	regions := geojson.NewFeatureCollection()
	seen := make(map[string]bool, len(ds.Regions))
	for _, r := range ds.Regions {
		if r.Geometry == nil || !r.Geometry.Bound().Intersects(bound) {
			continue
		}
		id := r.ID()
		style := s.RegionStyle(id, assignments, selected)
		// MVT clipping and projection mutate geometry in place
		f := geojson.NewFeature(orb.Clone(r.Geometry))
		f.ID = r.Code
		f.Properties["code"] = r.Code
		f.Properties["name"] = r.Name
		f.Properties["parentCode"] = r.ParentCode
		f.Properties["fill"] = style.FillColor
		f.Properties["duplicate"] = seen[id]
		seen[id] = true
		regions.Append(f)
	}

	layers := mvt.Layers{}
	if len(regions.Features) > 0 {
		layers = append(layers, mvt.NewLayer(TileLayerRegions, regions))
	}
	if len(ds.Boundaries) > 0 && ds.Boundaries.Bound().Intersects(bound) {
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(orb.Clone(ds.Boundaries)))
		layers = append(layers, mvt.NewLayer(TileLayerBoundaries, fc))
	}
	if len(layers) == 0 {
		return nil, nil
	}

	if eps := simplifyEpsilon(t.Z); eps > 0 {
		layers.Simplify(simplify.DouglasPeucker(eps))
	}
	layers.Clip(bound)
	layers.ProjectToTile(t)
	layers.RemoveEmpty(0.5, 0.5)

	kept := layers[:0]
	for _, l := range layers {
		if len(l.Features) > 0 {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	return mvt.Marshal(kept)
}

// simplifyEpsilon is the Douglas-Peucker tolerance in degrees for zoom.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 12:
		return 0
	case zoom >= 9:
		return 0.0001
	case zoom >= 6:
		return 0.001
	default:
		return 0.005
	}
}
