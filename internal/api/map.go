package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/humastar"
	"github.com/joeblew999/plat-comunas/internal/mapview"
)

const (
	geoJSONType = "application/geo+json"
	mvtType     = "application/vnd.mapbox-vector-tile"
)

// Region actions. Assign and clear act on the current selection.
var (
	actionSelect = humastar.ActionDef{Rel: "select", Pattern: "/api/v1/selection/%s", Method: "PUT", Title: "Select region"}
	actionAssign = humastar.ActionDef{Rel: "assign", Pattern: "/api/v1/assignments/selected", Method: "PUT", Title: "Assign a color"}
	actionClear  = humastar.ActionDef{Rel: "clear", Pattern: "/api/v1/assignments/selected", Method: "DELETE", Title: "Remove the color"}
)

type ViewBody struct {
	SouthWest     [2]float64        `json:"southWest" doc:"South-west corner as [lat, lng]"`
	NorthEast     [2]float64        `json:"northEast" doc:"North-east corner as [lat, lng]"`
	MinZoom       float64           `json:"minZoom" doc:"Farthest zoom out" example:"4"`
	LabelZoom     float64           `json:"labelZoom" doc:"Zoom from which labels are drawn" example:"5.8"`
	TileLayer     mapview.TileLayer `json:"tileLayer" doc:"Basemap"`
	BoundaryStyle mapview.PathStyle `json:"boundaryStyle" doc:"Style of the region boundary overlay"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type LabelsInput struct {
	Zoom  float64 `query:"zoom" doc:"Current map zoom" example:"6"`
	West  float64 `query:"west" doc:"Viewport west longitude; all four edges zero means the whole dataset"`
	South float64 `query:"south" doc:"Viewport south latitude"`
	East  float64 `query:"east" doc:"Viewport east longitude"`
	North float64 `query:"north" doc:"Viewport north latitude"`
}

type TileInput struct {
	Z int `path:"z" doc:"Zoom" example:"8"`
	X int `path:"x" doc:"Tile column" example:"77"`
	Y int `path:"y" doc:"Tile row" example:"153"`
}

// TileOutput is a Mapbox vector tile; 204 when the tile holds no geometry.
type TileOutput struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type LabelsBody struct {
	Labels   []mapview.VisibleLabel `json:"labels" doc:"Labels to draw"`
	ShowHint bool                   `json:"showHint" doc:"True below the label zoom; the page shows a hint instead"`
}

type CodeInput struct {
	Code string `path:"code" doc:"Commune code (CUT)" example:"13101"`
}

// RegionBody is a region with its current assignment.
type RegionBody struct {
	dataset.Region
	ColorID  string  `json:"colorId,omitempty" doc:"Assigned color id" example:"color-3"`
	Hex      string  `json:"hex" doc:"Fill color" example:"#ffe119"`
	Selected bool    `json:"selected" doc:"Whether this is the selected region"`
	Label    *LatLng `json:"label,omitempty" doc:"Label point, absent for degenerate geometry"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Actions implements humastar.Actor.
func (b RegionBody) Actions() []humastar.Action {
	defs := []humastar.ActionDef{actionSelect}
	if b.Selected {
		defs = append(defs, actionAssign)
		if b.ColorID != "" {
			defs = append(defs, actionClear)
		}
	}
	return humastar.ActionsFor(b.ID(), defs...)
}

// RegisterMap registers the map layer routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map/view", h.GetView, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/regions", h.GetRegionsGeoJSON, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/styles", h.GetStyles, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/boundaries", h.GetBoundaries, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/labels", h.GetLabels, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("map"))
}

// RegisterRegions registers region lookup routes.
func (h *APIHandler) RegisterRegions(api huma.API) {
	huma.Get(api, "/api/v1/regions", h.GetRegions, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/regions/{code}", h.GetRegion, huma.OperationTags("regions"))
}

func (h *APIHandler) GetView(ctx context.Context, input *struct{}) (*struct{ Body ViewBody }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	return &struct{ Body ViewBody }{Body: ViewBody{
		SouthWest:     ds.SouthWest(),
		NorthEast:     ds.NorthEast(),
		MinZoom:       mapview.MinZoom,
		LabelZoom:     h.svc.Labels.Threshold,
		TileLayer:     h.svc.Tiles,
		BoundaryStyle: mapview.BoundaryStyle(),
	}}, nil
}

func (h *APIHandler) GetRegionsGeoJSON(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, r := range ds.Regions {
		if r.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.ID()
		f.Properties["code"] = r.Code
		f.Properties["name"] = r.Name
		f.Properties["parentCode"] = r.ParentCode
		f.Properties["parentName"] = r.ParentName
		fc.Append(f)
	}
	return marshalGeoJSON(fc)
}

func (h *APIHandler) GetBoundaries(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	return marshalGeoJSON(Boundaries(ds))
}

// Boundaries returns the boundary overlay as a collection of at most one
// MultiLineString feature.
func Boundaries(ds *dataset.Dataset) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(ds.Boundaries) > 0 {
		f := geojson.NewFeature(ds.Boundaries)
		f.Properties["arcs"] = len(ds.BoundaryArcs)
		fc.Append(f)
	}
	return fc
}

func marshalGeoJSON(fc *geojson.FeatureCollection) (*GeoJSONOutput, error) {
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding geojson", err)
	}
	return &GeoJSONOutput{ContentType: geoJSONType, Body: data}, nil
}

func (h *APIHandler) GetStyles(ctx context.Context, input *struct{}) (*struct{ Body map[string]mapview.PathStyle }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	snap := h.svc.Controller.Snapshot()
	return &struct{ Body map[string]mapview.PathStyle }{
		Body: h.svc.Styler.Styles(ds, snap.Assignments, snap.Selected),
	}, nil
}

func (h *APIHandler) GetLabels(ctx context.Context, input *LabelsInput) (*struct{ Body LabelsBody }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	viewport := ds.Bounds
	if input.West != 0 || input.South != 0 || input.East != 0 || input.North != 0 {
		if input.West > input.East || input.South > input.North {
			return nil, huma.Error400BadRequest(fmt.Sprintf(
				"invalid viewport: west %v east %v south %v north %v", input.West, input.East, input.South, input.North))
		}
		viewport = mapview.Viewport(input.West, input.South, input.East, input.North)
	}
	labels, hint := h.svc.Labels.Visible(ds.Labels, input.Zoom, viewport)
	return &struct{ Body LabelsBody }{Body: LabelsBody{Labels: labels, ShowHint: hint}}, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	t, err := mapview.Tile(input.Z, input.X, input.Y)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	snap := h.svc.Controller.Snapshot()
	data, err := h.svc.Styler.VectorTile(ds, snap.Assignments, snap.Selected, t)
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{Status: http.StatusOK, ContentType: mvtType, Body: data}, nil
}

func (h *APIHandler) GetRegions(ctx context.Context, input *struct{}) (*struct{ Body []RegionBody }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	snap := h.svc.Controller.Snapshot()
	labels := labelIndex(ds)
	out := make([]RegionBody, 0, len(ds.Index))
	seen := make(map[string]bool, len(ds.Index))
	for _, r := range ds.Regions {
		id := r.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, h.regionBody(ds.Index[id], snap.Assignments, snap.Selected, labels))
	}
	return &struct{ Body []RegionBody }{Body: out}, nil
}

func (h *APIHandler) GetRegion(ctx context.Context, input *CodeInput) (*struct{ Body RegionBody }, error) {
	ds, err := h.dataset()
	if err != nil {
		return nil, err
	}
	r, ok := ds.Region(input.Code)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("region %s not found", input.Code))
	}
	snap := h.svc.Controller.Snapshot()
	return &struct{ Body RegionBody }{Body: h.regionBody(r, snap.Assignments, snap.Selected, labelIndex(ds))}, nil
}

func (h *APIHandler) regionBody(r dataset.Region, assignments map[string]string, selected string, labels map[string]dataset.Label) RegionBody {
	id := r.ID()
	b := RegionBody{
		Region:   r,
		ColorID:  assignments[id],
		Hex:      h.svc.Palette.Hex(assignments[id]),
		Selected: id == selected,
	}
	if l, ok := labels[id]; ok {
		b.Label = &LatLng{Lat: l.Lat(), Lng: l.Lng()}
	}
	return b
}

func labelIndex(ds *dataset.Dataset) map[string]dataset.Label {
	out := make(map[string]dataset.Label, len(ds.Labels))
	for _, l := range ds.Labels {
		out[l.ID] = l
	}
	return out
}
