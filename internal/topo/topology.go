// Package topo decodes TopoJSON topologies into orb geometries.
//
// Arcs are decoded to absolute coordinates once, at Decode time. Geometry
// objects keep their arc references so that shared boundaries can be
// recovered later with [Topology.MeshArcs].
package topo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
)

// Geometry object types.
const (
	TypeCollection      = "GeometryCollection"
	TypePoint           = "Point"
	TypeMultiPoint      = "MultiPoint"
	TypeLineString      = "LineString"
	TypeMultiLineString = "MultiLineString"
	TypePolygon         = "Polygon"
	TypeMultiPolygon    = "MultiPolygon"
)

// ErrNotTopology is returned when the payload is JSON but not a topology.
var ErrNotTopology = errors.New(`payload is not a "Topology"`)

// Transform is the optional quantization transform.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

func (t *Transform) apply(x, y float64) orb.Point {
	if t == nil {
		return orb.Point{x, y}
	}
	return orb.Point{x*t.Scale[0] + t.Translate[0], y*t.Scale[1] + t.Translate[1]}
}

// Object is a TopoJSON geometry object.
type Object struct {
	Type        string          `json:"type"`
	ID          any             `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Object       `json:"geometries,omitempty"`

	line   []int
	lines  [][]int
	polys  [][][]int
	points []orb.Point
}

// Topology is a decoded TopoJSON document.
type Topology struct {
	Type      string             `json:"type"`
	Transform *Transform         `json:"transform,omitempty"`
	BBox      []float64          `json:"bbox,omitempty"`
	RawArcs   [][][]float64      `json:"arcs"`
	Objects   map[string]*Object `json:"objects"`

	arcs [][]orb.Point
}

// Decode reads a topology and resolves every arc and arc reference.
func Decode(r io.Reader) (*Topology, error) {
	var t Topology
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding topology: %w", err)
	}
	if t.Type != "Topology" {
		return nil, ErrNotTopology
	}
	if err := t.decodeArcs(); err != nil {
		return nil, err
	}
	for name, obj := range t.Objects {
		if obj == nil {
			return nil, fmt.Errorf("object %q is null", name)
		}
		if err := t.resolve(obj); err != nil {
			return nil, fmt.Errorf("object %q: %w", name, err)
		}
	}
	return &t, nil
}

// Object returns the named object. With an empty name and exactly one
// object in the topology, that object is returned.
func (t *Topology) Object(name string) (*Object, error) {
	if name == "" && len(t.Objects) == 1 {
		for _, obj := range t.Objects {
			return obj, nil
		}
	}
	obj, ok := t.Objects[name]
	if !ok {
		return nil, fmt.Errorf("topology has no object %q", name)
	}
	return obj, nil
}

// ObjectNames lists the object names in sorted order.
func (t *Topology) ObjectNames() []string {
	names := make([]string, 0, len(t.Objects))
	for name := range t.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arc returns the decoded points of arc i.
func (t *Topology) Arc(i int) []orb.Point {
	return t.arcs[arcIndex(i)]
}

func (t *Topology) decodeArcs() error {
	t.arcs = make([][]orb.Point, len(t.RawArcs))
	for i, raw := range t.RawArcs {
		pts := make([]orb.Point, len(raw))
		var x, y float64
		for k, pos := range raw {
			if len(pos) < 2 {
				return fmt.Errorf("arc %d position %d: need two coordinates", i, k)
			}
			if t.Transform != nil {
				x += pos[0]
				y += pos[1]
			} else {
				x, y = pos[0], pos[1]
			}
			pts[k] = t.Transform.apply(x, y)
		}
		t.arcs[i] = pts
	}
	return nil
}

// resolve parses the type-dependent arcs/coordinates of obj and its children.
func (t *Topology) resolve(obj *Object) error {
	switch obj.Type {
	case TypeCollection:
		for i, g := range obj.Geometries {
			if g == nil {
				return fmt.Errorf("geometry %d is null", i)
			}
			if err := t.resolve(g); err != nil {
				return fmt.Errorf("geometry %d: %w", i, err)
			}
		}
	case TypeLineString:
		if err := json.Unmarshal(obj.Arcs, &obj.line); err != nil {
			return fmt.Errorf("%s arcs: %w", obj.Type, err)
		}
		return t.checkRefs(obj.line)
	case TypeMultiLineString, TypePolygon:
		if err := json.Unmarshal(obj.Arcs, &obj.lines); err != nil {
			return fmt.Errorf("%s arcs: %w", obj.Type, err)
		}
		for _, refs := range obj.lines {
			if err := t.checkRefs(refs); err != nil {
				return err
			}
		}
	case TypeMultiPolygon:
		if err := json.Unmarshal(obj.Arcs, &obj.polys); err != nil {
			return fmt.Errorf("%s arcs: %w", obj.Type, err)
		}
		for _, poly := range obj.polys {
			for _, refs := range poly {
				if err := t.checkRefs(refs); err != nil {
					return err
				}
			}
		}
	case TypePoint:
		var pos []float64
		if err := json.Unmarshal(obj.Coordinates, &pos); err != nil || len(pos) < 2 {
			return fmt.Errorf("%s coordinates: invalid position", obj.Type)
		}
		obj.points = []orb.Point{t.Transform.apply(pos[0], pos[1])}
	case TypeMultiPoint:
		var positions [][]float64
		if err := json.Unmarshal(obj.Coordinates, &positions); err != nil {
			return fmt.Errorf("%s coordinates: %w", obj.Type, err)
		}
		for _, pos := range positions {
			if len(pos) < 2 {
				return fmt.Errorf("%s coordinates: invalid position", obj.Type)
			}
			obj.points = append(obj.points, t.Transform.apply(pos[0], pos[1]))
		}
	case "":
		// null geometry
	default:
		return fmt.Errorf("unsupported geometry type %q", obj.Type)
	}
	return nil
}

func (t *Topology) checkRefs(refs []int) error {
	for _, ref := range refs {
		if i := arcIndex(ref); i >= len(t.arcs) {
			return fmt.Errorf("arc reference %d out of range (%d arcs)", ref, len(t.arcs))
		}
	}
	return nil
}

// arcIndex maps a possibly reversed reference (~i) to its arc index.
func arcIndex(ref int) int {
	if ref < 0 {
		return ^ref
	}
	return ref
}
