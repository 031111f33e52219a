package layer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	pkgerrors "github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/repository/layer"
)

const regionsGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3577"}},
  "features": [
    {
      "type": "Feature",
      "id": 7,
      "properties": {"REG_CODE": "MUL", "REG_NAME": "Mulga Lands"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}
    },
    {
      "type": "Feature",
      "id": 8,
      "properties": {"REG_CODE": "BBS", "REG_NAME": "Brigalow Belt South"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[20,0],[30,0],[30,10],[20,10],[20,0]]]]}
    }
  ]
}`

type MockPostGIS struct {
	mock.Mock
}

func (m *MockPostGIS) Load(ctx context.Context, kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	args := m.Called(ctx, kind, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnitLayer), args.Error(1)
}

func writeLayer(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layer.geojson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Grid(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())
	spec := &domain.GridSpec{OriginX: 0, OriginY: 0, CellSize: 1000, Cols: 4, Rows: 3}

	l, err := repo.Load(context.Background(), domain.UnitKindGrid, domain.LayerSource{
		Type: domain.LayerSourceGrid,
		EPSG: 3577,
		Grid: spec,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.UnitKindGrid, l.Kind)
	assert.Equal(t, domain.NewCRS(3577), l.CRS)
	require.NotNil(t, l.Grid)
	assert.Equal(t, *spec, *l.Grid)
	assert.Equal(t, 12, l.Len())
}

func TestLoad_GeoJSONWithIDField(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())

	l, err := repo.Load(context.Background(), domain.UnitKindRegion, domain.LayerSource{
		Type:      domain.LayerSourceGeoJSON,
		EPSG:      3577,
		Path:      writeLayer(t, regionsGeoJSON),
		IDField:   "REG_CODE",
		NameField: "REG_NAME",
	})
	require.NoError(t, err)

	require.Len(t, l.Units, 2)
	assert.Equal(t, "MUL", l.Units[0].ID)
	assert.Equal(t, "Mulga Lands", l.Units[0].Name)
	assert.Equal(t, 0, l.Units[0].Order)
	assert.IsType(t, orb.Polygon{}, l.Units[0].Geometry)
	assert.Equal(t, "BBS", l.Units[1].ID)
	assert.Equal(t, 1, l.Units[1].Order)
	assert.IsType(t, orb.MultiPolygon{}, l.Units[1].Geometry)
}

func TestLoad_GeoJSONFeatureIDFallback(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())

	l, err := repo.Load(context.Background(), domain.UnitKindRegion, domain.LayerSource{
		Type: domain.LayerSourceGeoJSON,
		EPSG: 3577,
		Path: writeLayer(t, regionsGeoJSON),
	})
	require.NoError(t, err)
	require.Len(t, l.Units, 2)
	assert.Equal(t, "7", l.Units[0].ID)
	assert.Equal(t, "8", l.Units[1].ID)
}

func TestLoad_GeoJSONDeclaredCRSMismatch(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())

	_, err := repo.Load(context.Background(), domain.UnitKindRegion, domain.LayerSource{
		Type: domain.LayerSourceGeoJSON,
		EPSG: 28355,
		Path: writeLayer(t, regionsGeoJSON),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrCRSMismatch)
	assert.True(t, pkgerrors.IsConfig(err))
}

func TestLoad_GeoJSONRejectsPoints(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())
	body := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"p1","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}
	]}`

	_, err := repo.Load(context.Background(), domain.UnitKindRegion, domain.LayerSource{
		Type: domain.LayerSourceGeoJSON,
		EPSG: 3577,
		Path: writeLayer(t, body),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLayer)
}

func TestLoad_MissingFiles(t *testing.T) {
	repo := layer.NewUnitLayerRepository(nil, zap.NewNop())
	dir := t.TempDir()

	for _, source := range []domain.LayerSource{
		{Type: domain.LayerSourceGeoJSON, EPSG: 3577, Path: filepath.Join(dir, "absent.geojson")},
		{Type: domain.LayerSourceShapefile, EPSG: 3577, Path: filepath.Join(dir, "absent.shp"), IDField: "ID"},
	} {
		t.Run(source.Type, func(t *testing.T) {
			_, err := repo.Load(context.Background(), domain.UnitKindRegion, source)
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrLayerUnavailable)
			assert.True(t, pkgerrors.IsConfig(err))
		})
	}
}

func TestLoad_PostGIS(t *testing.T) {
	source := domain.LayerSource{Type: domain.LayerSourcePostGIS, EPSG: 3577, Table: "regions"}

	_, err := layer.NewUnitLayerRepository(nil, zap.NewNop()).
		Load(context.Background(), domain.UnitKindRegion, source)
	assert.ErrorIs(t, err, pkgerrors.ErrLayerUnavailable)

	postgis := new(MockPostGIS)
	want := &domain.UnitLayer{Kind: domain.UnitKindRegion, CRS: domain.NewCRS(3577)}
	postgis.On("Load", mock.Anything, domain.UnitKindRegion, source).Return(want, nil)

	got, err := layer.NewUnitLayerRepository(postgis, zap.NewNop()).
		Load(context.Background(), domain.UnitKindRegion, source)
	require.NoError(t, err)
	assert.Same(t, want, got)
	postgis.AssertExpectations(t)
}

func TestLoad_UnknownType(t *testing.T) {
	_, err := layer.NewUnitLayerRepository(nil, zap.NewNop()).
		Load(context.Background(), domain.UnitKindRegion, domain.LayerSource{Type: "kml", EPSG: 3577})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLayer)
}
