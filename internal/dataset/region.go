// Package dataset turns the communes topology into the records and derived
// layers the map needs: regions, label points, bounds and the overlay of
// boundaries between top-level regions.
package dataset

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/paulmach/orb"
)

// Source property keys carried by every commune geometry.
const (
	PropCode       = "cut"
	PropName       = "comuna"
	PropParentCode = "region"
	PropParentName = "region_1"
)

// Region is one commune record. Immutable once loaded.
type Region struct {
	Code       int          `json:"code" doc:"Commune code (CUT)" example:"13101"`
	Name       string       `json:"name" doc:"Commune name" example:"Santiago"`
	ParentCode int          `json:"parentCode" doc:"Top-level region number" example:"13"`
	ParentName string       `json:"parentName" doc:"Top-level region name" example:"Metropolitana"`
	Geometry   orb.Geometry `json:"-"`
}

// ID is the string key used by the assignment table.
func (r Region) ID() string {
	return strconv.Itoa(r.Code)
}

type regionProps struct {
	Code       int    `mapstructure:"cut"`
	Name       string `mapstructure:"comuna"`
	ParentCode int    `mapstructure:"region"`
	ParentName string `mapstructure:"region_1"`
}

// decodeRegion builds a Region from a geometry property map. Codes may be
// numbers or numeric strings.
func decodeRegion(props map[string]any, geom orb.Geometry) (Region, error) {
	if _, ok := props[PropCode]; !ok {
		return Region{}, fmt.Errorf("missing %q property", PropCode)
	}

	var p regionProps
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return Region{}, err
	}
	if err := dec.Decode(props); err != nil {
		return Region{}, fmt.Errorf("decoding properties: %w", err)
	}

	return Region{
		Code:       p.Code,
		Name:       p.Name,
		ParentCode: p.ParentCode,
		ParentName: p.ParentName,
		Geometry:   geom,
	}, nil
}

// Label is the representative point of a region, used for its name tag.
type Label struct {
	ID       string    `json:"id" doc:"Region key" example:"13101"`
	Name     string    `json:"name" doc:"Region name" example:"Santiago"`
	Position orb.Point `json:"-"`
}

// Lat returns the label latitude.
func (l Label) Lat() float64 { return l.Position.Lat() }

// Lng returns the label longitude.
func (l Label) Lng() float64 { return l.Position.Lon() }

// Dataset is the derived, read-only view of one loaded topology.
type Dataset struct {
	// Regions in source order, duplicates included.
	Regions []Region
	// Index maps Region.ID to the first region with that code.
	Index      map[string]Region
	Bounds     orb.Bound
	Labels     []Label
	Boundaries orb.MultiLineString
	// BoundaryArcs are the topology arcs that make up Boundaries.
	BoundaryArcs []int
	// Unlabeled names the regions skipped during label derivation.
	Unlabeled []string
}

// Region looks up a region by key.
func (d *Dataset) Region(id string) (Region, bool) {
	r, ok := d.Index[id]
	return r, ok
}

// SouthWest returns the bottom-left corner of the bounds as (lat, lng).
func (d *Dataset) SouthWest() [2]float64 {
	return [2]float64{d.Bounds.Min.Lat(), d.Bounds.Min.Lon()}
}

// NorthEast returns the top-right corner of the bounds as (lat, lng).
func (d *Dataset) NorthEast() [2]float64 {
	return [2]float64{d.Bounds.Max.Lat(), d.Bounds.Max.Lon()}
}
