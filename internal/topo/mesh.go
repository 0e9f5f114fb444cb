package topo

import "github.com/paulmach/orb"

// MeshFilter decides whether an arc is kept. a and b are the first and last
// geometries referencing the arc; they are the same object for arcs on the
// outer edge of the mesh.
type MeshFilter func(a, b *Object) bool

type arcUse struct {
	ref  int
	geom *Object
}

// MeshArcs returns, in ascending order, the indices of arcs referenced by obj
// that pass filter. A nil filter keeps every referenced arc once.
func (t *Topology) MeshArcs(obj *Object, filter MeshFilter) []int {
	uses := make([][]arcUse, len(t.arcs))
	t.collectArcs(obj, uses)

	var out []int
	for i, u := range uses {
		if len(u) == 0 {
			continue
		}
		if filter == nil || filter(u[0].geom, u[len(u)-1].geom) {
			out = append(out, i)
		}
	}
	return out
}

// Mesh returns the arcs selected by MeshArcs as one line string per arc,
// oriented as the first geometry that references it.
func (t *Topology) Mesh(obj *Object, filter MeshFilter) orb.MultiLineString {
	uses := make([][]arcUse, len(t.arcs))
	t.collectArcs(obj, uses)

	mls := orb.MultiLineString{}
	for i, u := range uses {
		if len(u) == 0 {
			continue
		}
		if filter != nil && !filter(u[0].geom, u[len(u)-1].geom) {
			continue
		}
		line := append(orb.LineString(nil), t.arcs[i]...)
		if u[0].ref < 0 {
			reverse(line)
		}
		mls = append(mls, line)
	}
	return mls
}

func (t *Topology) collectArcs(obj *Object, uses [][]arcUse) {
	add := func(refs []int) {
		for _, ref := range refs {
			i := arcIndex(ref)
			uses[i] = append(uses[i], arcUse{ref: ref, geom: obj})
		}
	}

	switch obj.Type {
	case TypeCollection:
		for _, g := range obj.Geometries {
			t.collectArcs(g, uses)
		}
	case TypeLineString:
		add(obj.line)
	case TypeMultiLineString, TypePolygon:
		for _, refs := range obj.lines {
			add(refs)
		}
	case TypeMultiPolygon:
		for _, rings := range obj.polys {
			for _, refs := range rings {
				add(refs)
			}
		}
	}
}
