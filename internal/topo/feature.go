package topo

import (
	"github.com/paulmach/orb"
)

// Feature is a geometry object converted to absolute coordinates.
type Feature struct {
	ID         any
	Properties map[string]any
	Geometry   orb.Geometry // nil for null geometries
	Object     *Object
}

// Features flattens obj into features. A collection yields one feature per
// member, any other object yields exactly one.
func (t *Topology) Features(obj *Object) []Feature {
	if obj.Type != TypeCollection {
		return []Feature{t.feature(obj)}
	}
	features := make([]Feature, 0, len(obj.Geometries))
	for _, g := range obj.Geometries {
		features = append(features, t.feature(g))
	}
	return features
}

func (t *Topology) feature(obj *Object) Feature {
	return Feature{
		ID:         obj.ID,
		Properties: obj.Properties,
		Geometry:   t.Geometry(obj),
		Object:     obj,
	}
}

// Geometry converts a single object to an orb geometry.
func (t *Topology) Geometry(obj *Object) orb.Geometry {
	switch obj.Type {
	case TypePoint:
		return obj.points[0]
	case TypeMultiPoint:
		return orb.MultiPoint(append([]orb.Point(nil), obj.points...))
	case TypeLineString:
		return t.lineString(obj.line)
	case TypeMultiLineString:
		mls := make(orb.MultiLineString, 0, len(obj.lines))
		for _, refs := range obj.lines {
			mls = append(mls, t.lineString(refs))
		}
		return mls
	case TypePolygon:
		return t.polygon(obj.lines)
	case TypeMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(obj.polys))
		for _, rings := range obj.polys {
			mp = append(mp, t.polygon(rings))
		}
		return mp
	case TypeCollection:
		c := make(orb.Collection, 0, len(obj.Geometries))
		for _, g := range obj.Geometries {
			if geom := t.Geometry(g); geom != nil {
				c = append(c, geom)
			}
		}
		return c
	}
	return nil
}

// stitch concatenates the referenced arcs. Consecutive arcs share their
// join point, which is emitted once.
func (t *Topology) stitch(refs []int) []orb.Point {
	var pts []orb.Point
	for _, ref := range refs {
		if len(pts) > 0 {
			pts = pts[:len(pts)-1]
		}
		start := len(pts)
		pts = append(pts, t.arcs[arcIndex(ref)]...)
		if ref < 0 {
			reverse(pts[start:])
		}
	}
	return pts
}

func (t *Topology) lineString(refs []int) orb.LineString {
	pts := t.stitch(refs)
	if len(pts) == 1 {
		pts = append(pts, pts[0])
	}
	return orb.LineString(pts)
}

func (t *Topology) polygon(rings [][]int) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, refs := range rings {
		pts := t.stitch(refs)
		if len(pts) == 0 {
			continue
		}
		for len(pts) < 4 {
			pts = append(pts, pts[0])
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly
}

func reverse(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
