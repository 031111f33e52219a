package layer

import (
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/landscape-rescale/internal/domain"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/spatial"
)

// GridFeatureCollection материализует сетку в FeatureCollection.
// Ячейки идут в порядке идентификаторов, в свойствах лежат id, row, col.
func GridFeatureCollection(spec domain.GridSpec, crs domain.CRS) (*geojson.FeatureCollection, error) {
	grid, err := spatial.NewGrid(spec)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(spec.Bound())
	for _, u := range grid.Units() {
		f := geojson.NewFeature(u.Geometry)
		f.ID = u.ID
		f.Properties["id"] = u.ID
		f.Properties["row"] = u.Order / spec.Cols
		f.Properties["col"] = u.Order % spec.Cols
		fc.Append(f)
	}

	if crs.IsKnown() {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "name",
				"properties": map[string]interface{}{"name": crs.String()},
			},
		}
	}
	return fc, nil
}

// WriteGridGeoJSON пишет сетку как GeoJSON
func WriteGridGeoJSON(w io.Writer, spec domain.GridSpec, crs domain.CRS) (int, error) {
	fc, err := GridFeatureCollection(spec, crs)
	if err != nil {
		return 0, err
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return 0, apperrors.Wrap(fmt.Errorf("marshal grid: %w", err), apperrors.ErrInternalServer)
	}
	if _, err := w.Write(data); err != nil {
		return 0, apperrors.Wrap(fmt.Errorf("write grid: %w", err), apperrors.ErrOutputError)
	}
	return len(fc.Features), nil
}
