package layer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/landscape-rescale/internal/domain"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

func loadGeoJSON(kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	data, err := readFile(kind, source.Path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("%s: parse %s: %w", kind, source.Path, err), apperrors.ErrInvalidLayer)
	}

	declared, err := declaredCRS(fc)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("%s: %s: %w", kind, source.Path, err), apperrors.ErrInvalidLayer)
	}
	if declared.IsKnown() && declared.EPSG != source.EPSG {
		return nil, apperrors.Wrapf(apperrors.ErrCRSMismatch,
			"%s: %s declares %s, configured %s", kind, source.Path, declared, source.CRS())
	}

	layer := &domain.UnitLayer{
		Kind:  kind,
		CRS:   source.CRS(),
		Units: make([]domain.Unit, 0, len(fc.Features)),
	}

	for i, f := range fc.Features {
		id, ok := featureID(f, source.IDField)
		if !ok {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: feature %d has no id", kind, i)
		}

		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer,
				"%s: feature %s is not a polygon", kind, id)
		}

		var name string
		if source.NameField != "" {
			name = f.Properties.MustString(source.NameField, "")
		}

		layer.Units = append(layer.Units, domain.Unit{
			ID:       id,
			Name:     name,
			Geometry: f.Geometry,
			Order:    i,
		})
	}

	return layer, nil
}

// featureID берет идентификатор из свойства idField, иначе из id объекта
func featureID(f *geojson.Feature, idField string) (string, bool) {
	if idField != "" {
		if v, ok := f.Properties[idField]; ok {
			return formatID(v)
		}
		return "", false
	}
	return formatID(f.ID)
}

func formatID(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			return strconv.FormatInt(int64(id), 10), true
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

// declaredCRS читает устаревший член "crs" (GeoJSON 2008), если он есть
func declaredCRS(fc *geojson.FeatureCollection) (domain.CRS, error) {
	raw, ok := fc.ExtraMembers["crs"]
	if !ok || raw == nil {
		return domain.CRS{}, nil
	}

	member, ok := raw.(map[string]interface{})
	if !ok {
		return domain.CRS{}, fmt.Errorf("malformed crs member")
	}
	props, ok := member["properties"].(map[string]interface{})
	if !ok {
		return domain.CRS{}, fmt.Errorf("malformed crs member")
	}
	name, ok := props["name"].(string)
	if !ok {
		return domain.CRS{}, fmt.Errorf("crs member without name")
	}

	// CRS84 - долгота/широта WGS84
	if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
		return domain.NewCRS(4326), nil
	}
	return domain.ParseCRS(name)
}
