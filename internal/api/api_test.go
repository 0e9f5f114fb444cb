package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-comunas/internal/api"
	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/humastar"
	"github.com/joeblew999/plat-comunas/internal/logger"
	"github.com/joeblew999/plat-comunas/internal/mapview"
	"github.com/joeblew999/plat-comunas/internal/palette"
	"github.com/joeblew999/plat-comunas/internal/service"
	"github.com/joeblew999/plat-comunas/internal/storage"
)

const fixture = "../dataset/testdata/communes.topojson"

type env struct {
	api   humatest.TestAPI
	svc   *api.Services
	store *storage.MemoryStore
}

func newEnv(t *testing.T, source string) *env {
	t.Helper()
	p := palette.Default()
	store := storage.NewMemoryStore()
	svc := &api.Services{
		Session:    dataset.NewSession(dataset.NewLoader(""), source, logger.Discard()),
		Controller: service.NewController(p, store, nil, logger.Discard()),
		Palette:    p,
		Styler:     mapview.NewStyler(p),
		Labels:     mapview.LabelPolicy{Threshold: mapview.DefaultLabelZoom},
		Tiles:      mapview.DefaultTileLayer,
		ExportName: "prueba.csv",
	}

	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("Test API", api.Version)
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, tapi := humatest.New(t, cfg)

	api.RegisterRoutes(tapi, svc)
	api.NewInfoHandler(".data", "memory", source, dataset.DefaultObject).RegisterRoutes(tapi)
	api.AddLinks(links)
	links.Derive(tapi)

	return &env{api: tapi, svc: svc, store: store}
}

// loaded returns an env whose dataset finished loading.
func loaded(t *testing.T) *env {
	t.Helper()
	e := newEnv(t, fixture)
	require.NoError(t, e.svc.Session.Load(context.Background()))
	return e
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v), body)
	return v
}

func hasLink(h http.Header, fragment string) bool {
	for _, v := range h.Values("Link") {
		if strings.Contains(v, fragment) {
			return true
		}
	}
	return false
}

func TestHealth(t *testing.T) {
	e := newEnv(t, fixture)
	resp := e.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[api.HealthBody](t, resp.Body.String())
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, api.Version, body.Version)
}

func TestInfo(t *testing.T) {
	e := newEnv(t, fixture)
	resp := e.api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[api.InfoBody](t, resp.Body.String())
	assert.Equal(t, "plat-comunas", body.Name)
	assert.Equal(t, "memory", body.Storage)
	assert.Equal(t, dataset.DefaultObject, body.Object)
}

func TestStatus_Lifecycle(t *testing.T) {
	e := newEnv(t, fixture)

	body := decode[api.StatusBody](t, e.api.Get("/api/v1/status").Body.String())
	assert.Equal(t, dataset.StatusIdle, body.Status)

	resp := e.api.Get("/api/v1/map/regions")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	require.NoError(t, e.svc.Session.Load(context.Background()))
	body = decode[api.StatusBody](t, e.api.Get("/api/v1/status").Body.String())
	assert.Equal(t, dataset.StatusReady, body.Status)
	assert.Equal(t, 6, body.Regions)
	assert.Equal(t, 3, body.Labels)
}

func TestStatus_Failed(t *testing.T) {
	e := newEnv(t, "testdata/does-not-exist.topojson")
	require.Error(t, e.svc.Session.Load(context.Background()))

	body := decode[api.StatusBody](t, e.api.Get("/api/v1/status").Body.String())
	assert.Equal(t, dataset.StatusError, body.Status)
	assert.NotEmpty(t, body.Message)

	for _, path := range []string{"/api/v1/map/view", "/api/v1/map/styles", "/api/v1/regions", "/api/v1/export"} {
		resp := e.api.Get(path)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code, path)
		assert.Contains(t, resp.Body.String(), "does-not-exist", path)
	}
}

func TestView(t *testing.T) {
	e := loaded(t)
	resp := e.api.Get("/api/v1/map/view")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[api.ViewBody](t, resp.Body.String())
	assert.Equal(t, [2]float64{0, 0}, body.SouthWest)
	assert.Equal(t, [2]float64{1, 21}, body.NorthEast)
	assert.Equal(t, mapview.DefaultLabelZoom, body.LabelZoom)
	assert.Equal(t, mapview.DefaultTileLayer.URL, body.TileLayer.URL)
	assert.True(t, hasLink(resp.Header(), `rel="boundaries"`))
}

func TestRegionsGeoJSON(t *testing.T) {
	e := loaded(t)
	resp := e.api.Get("/api/v1/map/regions")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/geo+json")

	fc, err := geojson.UnmarshalFeatureCollection(resp.Body.Bytes())
	require.NoError(t, err)
	// six records, one without geometry
	assert.Len(t, fc.Features, 5)
	assert.Equal(t, "Alfa", fc.Features[0].Properties["name"])
	assert.Equal(t, "101", fc.Features[0].ID)
}

func TestBoundaries(t *testing.T) {
	e := loaded(t)
	resp := e.api.Get("/api/v1/map/boundaries")
	require.Equal(t, http.StatusOK, resp.Code)

	fc, err := geojson.UnmarshalFeatureCollection(resp.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "MultiLineString", fc.Features[0].Geometry.GeoJSONType())
}

func TestTiles(t *testing.T) {
	e := loaded(t)

	resp := e.api.Get("/api/v1/map/tiles/0/0/0")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/vnd.mapbox-vector-tile", resp.Header().Get("Content-Type"))
	assert.NotEmpty(t, resp.Body.Bytes())

	assert.Equal(t, http.StatusNoContent, e.api.Get("/api/v1/map/tiles/8/0/0").Code)
	assert.Equal(t, http.StatusNotFound, e.api.Get("/api/v1/map/tiles/20/0/0").Code)
	assert.Equal(t, http.StatusNotFound, e.api.Get("/api/v1/map/tiles/1/2/0").Code)
}

func TestLabels(t *testing.T) {
	e := loaded(t)

	tests := []struct {
		name     string
		query    string
		status   int
		labels   []string
		showHint bool
	}{
		{"below threshold", "?zoom=5", http.StatusOK, nil, true},
		{"whole dataset", "?zoom=6", http.StatusOK, []string{"101", "102", "201"}, false},
		{"viewport", "?zoom=7&west=0&south=0&east=1&north=1", http.StatusOK, []string{"101"}, false},
		{"inverted viewport", "?zoom=7&west=3&south=0&east=1&north=1", http.StatusBadRequest, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.api.Get("/api/v1/map/labels" + tt.query)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			body := decode[api.LabelsBody](t, resp.Body.String())
			assert.Equal(t, tt.showHint, body.ShowHint)
			ids := make([]string, 0, len(body.Labels))
			for _, l := range body.Labels {
				ids = append(ids, l.ID)
			}
			assert.ElementsMatch(t, tt.labels, ids)
		})
	}
}

func TestRegions(t *testing.T) {
	e := loaded(t)

	resp := e.api.Get("/api/v1/regions")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[[]api.RegionBody](t, resp.Body.String())
	assert.Len(t, list, 5, "one entry per code")
	assert.Equal(t, "Alfa", list[0].Name)

	resp = e.api.Get("/api/v1/regions/301")
	require.Equal(t, http.StatusOK, resp.Code)
	vacia := decode[api.RegionBody](t, resp.Body.String())
	assert.Nil(t, vacia.Label)
	assert.Equal(t, palette.DefaultGray, vacia.Hex)
	assert.True(t, hasLink(resp.Header(), `rel="select"`))
	assert.True(t, hasLink(resp.Header(), `rel="self"`))

	assert.Equal(t, http.StatusNotFound, e.api.Get("/api/v1/regions/999").Code)
}

func TestSelectionAndAssignment(t *testing.T) {
	e := loaded(t)
	ctx := context.Background()

	resp := e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-3"})
	assert.Equal(t, http.StatusConflict, resp.Code, "nothing selected")

	assert.Equal(t, http.StatusNotFound, e.api.Put("/api/v1/selection/999").Code)

	resp = e.api.Put("/api/v1/selection/101")
	require.Equal(t, http.StatusOK, resp.Code)
	sel := decode[api.RegionBody](t, resp.Body.String())
	assert.True(t, sel.Selected)
	assert.Equal(t, "Alfa", sel.Name)
	assert.True(t, hasLink(resp.Header(), `rel="assign"`))
	assert.False(t, hasLink(resp.Header(), `rel="clear"`))

	resp = e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-99"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Empty(t, e.svc.Controller.Assignments())

	resp = e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-3"})
	require.Equal(t, http.StatusOK, resp.Code)
	sel = decode[api.RegionBody](t, resp.Body.String())
	assert.Equal(t, "color-3", sel.ColorID)
	assert.Equal(t, "#ffe119", sel.Hex)
	assert.True(t, hasLink(resp.Header(), `rel="clear"`))

	assignments := decode[map[string]string](t, e.api.Get("/api/v1/assignments").Body.String())
	assert.Equal(t, map[string]string{"101": "color-3"}, assignments)

	stored, found, err := e.store.Get(ctx, storage.KeyAssignments)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"101":"color-3"}`, stored)

	styles := decode[map[string]mapview.PathStyle](t, e.api.Get("/api/v1/map/styles").Body.String())
	assert.Equal(t, "#ffe119", styles["101"].FillColor)
	assert.Equal(t, mapview.StrokeSelected, styles["101"].Color)
	assert.Equal(t, palette.DefaultGray, styles["102"].FillColor)

	resp = e.api.Delete("/api/v1/assignments/selected")
	require.Equal(t, http.StatusOK, resp.Code)
	sel = decode[api.RegionBody](t, resp.Body.String())
	assert.Empty(t, sel.ColorID)
	assert.Empty(t, e.svc.Controller.Assignments(), "clearing removes the key")

	assert.Equal(t, http.StatusNoContent, e.api.Delete("/api/v1/selection").Code)
	selection := decode[api.SelectionBody](t, e.api.Get("/api/v1/selection").Body.String())
	assert.False(t, selection.Selected)
	assert.Nil(t, selection.Region)
}

func TestClearAll(t *testing.T) {
	e := loaded(t)
	for _, code := range []string{"101", "201"} {
		require.Equal(t, http.StatusOK, e.api.Put("/api/v1/selection/"+code).Code)
		require.Equal(t, http.StatusOK, e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-1"}).Code)
	}
	require.Equal(t, http.StatusOK, e.api.Put("/api/v1/legend/color-1", map[string]any{"label": "Norte grande"}).Code)

	assert.Equal(t, http.StatusNoContent, e.api.Delete("/api/v1/assignments").Code)
	assert.Empty(t, e.svc.Controller.Assignments())
	assert.Equal(t, "Norte grande", e.svc.Controller.Labels()["color-1"], "labels survive")
}

func TestLegend(t *testing.T) {
	e := loaded(t)

	legend := decode[[]api.LegendEntry](t, e.api.Get("/api/v1/legend").Body.String())
	require.Len(t, legend, palette.Size)
	assert.Equal(t, "color-1", legend[0].ColorID)
	assert.Equal(t, "Red", legend[0].Label)

	resp := e.api.Put("/api/v1/legend/color-2", map[string]any{"label": "Prioridad"})
	require.Equal(t, http.StatusOK, resp.Code)
	entry := decode[api.LegendEntry](t, resp.Body.String())
	assert.Equal(t, "Prioridad", entry.Label)
	assert.Equal(t, "Orange", entry.DefaultLabel)

	resp = e.api.Put("/api/v1/legend/color-2", map[string]any{"label": ""})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "", e.svc.Controller.Labels()["color-2"], "empty labels are kept")

	assert.Equal(t, http.StatusNotFound, e.api.Put("/api/v1/legend/nope", map[string]any{"label": "x"}).Code)

	colors := decode[[]palette.Color](t, e.api.Get("/api/v1/palette").Body.String())
	assert.Len(t, colors, palette.Size)
}

func TestGroups(t *testing.T) {
	e := loaded(t)
	for _, code := range []string{"201", "102"} {
		require.Equal(t, http.StatusOK, e.api.Put("/api/v1/selection/"+code).Code)
		require.Equal(t, http.StatusOK, e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-1"}).Code)
	}

	groups := decode[[]service.Group](t, e.api.Get("/api/v1/groups").Body.String())
	require.Len(t, groups, palette.Size)
	assert.Equal(t, "color-1", groups[0].Color.ID)
	require.Len(t, groups[0].Regions, 2)
	assert.Equal(t, 102, groups[0].Regions[0].Code)
	assert.Equal(t, 201, groups[0].Regions[1].Code)
	assert.Empty(t, groups[1].Regions)
}

func TestExport(t *testing.T) {
	e := loaded(t)
	require.Equal(t, http.StatusOK, e.api.Put("/api/v1/selection/101").Code)
	require.Equal(t, http.StatusOK, e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-1"}).Code)

	resp := e.api.Get("/api/v1/export")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, `attachment; filename="prueba.csv"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t,
		"comuna,cut,region_num,region_codigo,color_id,color_hex,grupo\n"+
			"Alfa,101,1,Norte,color-1,#e6194b,Red\n",
		resp.Body.String())
}

func TestImport(t *testing.T) {
	e := loaded(t)
	csvBody := "comuna,cut,region_num,region_codigo,color_id,color_hex,grupo\n" +
		"Beta,102,1,Norte,color-4,#bfef45,Prioridad\n" +
		"Gamma,201,2,Centro,color-99,#000000,Nada\n"

	resp := e.api.Post("/api/v1/import", "Content-Type: text/csv", strings.NewReader(csvBody))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode[api.ImportBody](t, resp.Body.String())
	assert.Equal(t, 1, body.Rows)
	assert.Equal(t, 1, body.Skipped)
	assert.Equal(t, 1, body.Assignments)

	assert.Equal(t, service.Assignments{"102": "color-4"}, e.svc.Controller.Assignments())
	assert.Equal(t, "Prioridad", e.svc.Controller.Labels()["color-4"])
	assert.Equal(t, "Red", e.svc.Controller.Labels()["color-1"])
}

func TestImport_FormatError(t *testing.T) {
	e := loaded(t)
	require.Equal(t, http.StatusOK, e.api.Put("/api/v1/selection/101").Code)
	require.Equal(t, http.StatusOK, e.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": "color-1"}).Code)

	tests := []struct {
		name string
		body string
	}{
		{"empty", "   \n"},
		{"wrong header", "name,code\nAlfa,101\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.api.Post("/api/v1/import", "Content-Type: text/csv", strings.NewReader(tt.body))
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
			assert.Equal(t, service.Assignments{"101": "color-1"}, e.svc.Controller.Assignments(), "state untouched")
		})
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := loaded(t)
	for code, color := range map[string]string{"101": "color-2", "201": "color-5"} {
		require.Equal(t, http.StatusOK, src.api.Put("/api/v1/selection/"+code).Code)
		require.Equal(t, http.StatusOK, src.api.Put("/api/v1/assignments/selected", map[string]any{"colorId": color}).Code)
	}
	require.Equal(t, http.StatusOK, src.api.Put("/api/v1/legend/color-5", map[string]any{"label": "Centro, sur"}).Code)
	exported := src.api.Get("/api/v1/export").Body.String()

	dst := loaded(t)
	resp := dst.api.Post("/api/v1/import", "Content-Type: text/csv", strings.NewReader(exported))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, src.svc.Controller.Assignments(), dst.svc.Controller.Assignments())
	assert.Equal(t, "Centro, sur", dst.svc.Controller.Labels()["color-5"])
}

func TestLinks_Static(t *testing.T) {
	e := loaded(t)
	resp := e.api.Get("/api/v1/assignments")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, hasLink(resp.Header(), `</api/v1/export>; rel="export"`))
	assert.True(t, hasLink(resp.Header(), `</api/v1/groups>; rel="groups"`))
}
