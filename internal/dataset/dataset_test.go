package dataset_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/logger"
	"github.com/joeblew999/plat-comunas/internal/topo"
)

const fixture = "testdata/communes.topojson"

func derive(t *testing.T) *dataset.Dataset {
	t.Helper()
	f, err := os.Open(fixture)
	require.NoError(t, err)
	defer f.Close()

	tp, err := topo.Decode(f)
	require.NoError(t, err)
	ds, err := dataset.Derive(tp, dataset.DefaultObject)
	require.NoError(t, err)
	return ds
}

func TestDerive_Regions(t *testing.T) {
	ds := derive(t)

	assert.Len(t, ds.Regions, 6)
	assert.Len(t, ds.Index, 5)

	alfa, ok := ds.Region("101")
	require.True(t, ok)
	assert.Equal(t, "Alfa", alfa.Name, "first occurrence is indexed")
	assert.Equal(t, 1, alfa.ParentCode)
	assert.Equal(t, "Norte", alfa.ParentName)

	gamma, ok := ds.Region("201")
	require.True(t, ok)
	assert.Equal(t, 201, gamma.Code, "numeric strings decode to codes")
	assert.Equal(t, 2, gamma.ParentCode)

	vacia, ok := ds.Region("301")
	require.True(t, ok)
	assert.Nil(t, vacia.Geometry)
}

func TestDerive_Labels(t *testing.T) {
	ds := derive(t)

	require.Len(t, ds.Labels, 3)
	seen := map[string]bool{}
	for _, l := range ds.Labels {
		assert.False(t, seen[l.ID], "duplicate label for %s", l.ID)
		seen[l.ID] = true
	}

	assert.Equal(t, "101", ds.Labels[0].ID)
	assert.Equal(t, "Alfa", ds.Labels[0].Name)
	assert.InDelta(t, 0.5, ds.Labels[0].Lng(), 1e-9)
	assert.InDelta(t, 0.5, ds.Labels[0].Lat(), 1e-9)
	assert.InDelta(t, 1.5, ds.Labels[1].Lng(), 1e-9)
	assert.InDelta(t, 2.5, ds.Labels[2].Lng(), 1e-9)

	assert.ElementsMatch(t, []string{"Vacia", "Plana"}, ds.Unlabeled)
}

func TestDerive_Bounds(t *testing.T) {
	ds := derive(t)

	assert.Equal(t, orb.Point{0, 0}, ds.Bounds.Min)
	assert.Equal(t, orb.Point{21, 1}, ds.Bounds.Max)
	assert.Equal(t, [2]float64{0, 0}, ds.SouthWest())
	assert.Equal(t, [2]float64{1, 21}, ds.NorthEast())
}

func TestDerive_Boundaries(t *testing.T) {
	ds := derive(t)

	// Only Beta|Gamma separates two regions; Alfa|Beta share region 1.
	assert.Equal(t, []int{2}, ds.BoundaryArcs)
	require.Len(t, ds.Boundaries, 1)
	assert.Equal(t, orb.LineString{{2, 0}, {2, 1}}, ds.Boundaries[0])
}

func TestDerive_MissingCode(t *testing.T) {
	tp, err := topo.Decode(strings.NewReader(`{
	  "type": "Topology",
	  "arcs": [[[0,0],[1,0],[1,1],[0,0]]],
	  "objects": {"Comunas_de_Chile": {"type": "GeometryCollection", "geometries": [
	    {"type": "Polygon", "arcs": [[0]], "properties": {"comuna": "Sin codigo"}}
	  ]}}
	}`))
	require.NoError(t, err)

	_, err = dataset.Derive(tp, dataset.DefaultObject)
	assert.Error(t, err)
}

func TestDerive_UnknownObject(t *testing.T) {
	f, err := os.Open(fixture)
	require.NoError(t, err)
	defer f.Close()
	tp, err := topo.Decode(f)
	require.NoError(t, err)

	_, err = dataset.Derive(tp, "Provincias")
	assert.Error(t, err)
}

func TestLoader_HTTP(t *testing.T) {
	body, err := os.ReadFile(fixture)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/ok.topojson":
			w.Write(body)
		case "/data/broken.topojson":
			w.Write([]byte(`{"type": "Topology", "arcs": [`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := dataset.NewLoader("")
	ctx := context.Background()

	ds, err := loader.Load(ctx, srv.URL+"/data/ok.topojson")
	require.NoError(t, err)
	assert.Len(t, ds.Labels, 3)

	ds, err = loader.Load(ctx, srv.URL+"/data/missing.topojson")
	assert.Nil(t, ds)
	var le *dataset.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, http.StatusNotFound, le.Status)
	assert.Contains(t, err.Error(), "404")

	ds, err = loader.Load(ctx, srv.URL+"/data/broken.topojson")
	assert.Nil(t, ds)
	require.True(t, errors.As(err, &le))
	assert.Zero(t, le.Status)
}

func TestLoader_File(t *testing.T) {
	loader := dataset.NewLoader(dataset.DefaultObject)

	ds, err := loader.Load(context.Background(), fixture)
	require.NoError(t, err)
	assert.Len(t, ds.Regions, 6)

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.topojson"))
	var le *dataset.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	s := dataset.NewSession(dataset.NewLoader(""), fixture, logger.Discard())
	_, err := s.Dataset()
	assert.ErrorIs(t, err, dataset.ErrNotLoaded)

	require.NoError(t, s.Load(ctx))
	status, msg := s.State()
	assert.Equal(t, dataset.StatusReady, status)
	assert.Empty(t, msg)

	ds, err := s.Dataset()
	require.NoError(t, err)
	assert.Len(t, ds.Index, 5)

	// a second load is not issued
	s.Start(ctx)
	require.NoError(t, s.Wait(ctx))
	again, _ := s.Dataset()
	assert.Same(t, ds, again)
}

func TestSession_Failure(t *testing.T) {
	ctx := context.Background()
	s := dataset.NewSession(dataset.NewLoader(""), filepath.Join(t.TempDir(), "missing.topojson"), logger.Discard())

	s.Start(ctx)
	err := s.Wait(ctx)
	require.Error(t, err)

	status, msg := s.State()
	assert.Equal(t, dataset.StatusError, status)
	assert.NotEmpty(t, msg)

	ds, err := s.Dataset()
	assert.Nil(t, ds)
	assert.Error(t, err)
}
