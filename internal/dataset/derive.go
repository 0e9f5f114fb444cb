package dataset

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-comunas/internal/topo"
)

// Derive builds the dataset from the named object of t.
//
// Label points follow "first occurrence wins": a later geometry with an
// already seen code gets no label of its own. Regions whose geometry is
// missing, not polygonal, zero-area or yields a non-finite centroid are
// left without a label and listed in Unlabeled.
func Derive(t *topo.Topology, objectName string) (*Dataset, error) {
	obj, err := t.Object(objectName)
	if err != nil {
		return nil, err
	}

	features := t.Features(obj)
	ds := &Dataset{
		Regions: make([]Region, 0, len(features)),
		Index:   make(map[string]Region, len(features)),
	}

	parentOf := make(map[*topo.Object]int, len(features))
	labeled := make(map[string]bool, len(features))
	haveBounds := false

	for i, f := range features {
		r, err := decodeRegion(f.Properties, f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("geometry %d: %w", i, err)
		}
		ds.Regions = append(ds.Regions, r)
		parentOf[f.Object] = r.ParentCode

		id := r.ID()
		if _, seen := ds.Index[id]; !seen {
			ds.Index[id] = r
		}

		if r.Geometry != nil {
			if b := r.Geometry.Bound(); !b.IsEmpty() {
				if haveBounds {
					ds.Bounds = ds.Bounds.Union(b)
				} else {
					ds.Bounds = b
					haveBounds = true
				}
			}
		}

		if labeled[id] {
			continue
		}
		pos, ok := labelPoint(r.Geometry)
		if !ok {
			ds.Unlabeled = append(ds.Unlabeled, r.Name)
			continue
		}
		ds.Labels = append(ds.Labels, Label{ID: id, Name: r.Name, Position: pos})
		labeled[id] = true
	}

	crossesRegions := func(a, b *topo.Object) bool {
		if a == nil || b == nil {
			return false
		}
		return parentOf[a] != parentOf[b]
	}
	ds.BoundaryArcs = t.MeshArcs(obj, crossesRegions)
	ds.Boundaries = t.Mesh(obj, crossesRegions)

	return ds, nil
}

// labelPoint returns the area-weighted centroid of a polygonal geometry.
func labelPoint(g orb.Geometry) (orb.Point, bool) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return orb.Point{}, false
	}

	c, area := planar.CentroidArea(g)
	if area <= 0 || math.IsNaN(area) {
		return orb.Point{}, false
	}
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Point{}, false
		}
	}
	return c, true
}
