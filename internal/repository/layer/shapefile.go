package layer

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/landscape-rescale/internal/domain"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

// loadShapefile читает полигоны ESRI shapefile; CRS берется из конфигурации
func loadShapefile(kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	if source.IDField == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: shapefile layer needs id_field", kind)
	}

	dec, err := shp.NewDecoder(source.Path)
	if err != nil {
		return nil, openError(kind, source.Path, err)
	}
	defer dec.Close()

	fields := []string{source.IDField}
	if source.NameField != "" {
		fields = append(fields, source.NameField)
	}

	layer := &domain.UnitLayer{
		Kind: kind,
		CRS:  source.CRS(),
	}

	for order := 0; ; order++ {
		g, values, more := dec.DecodeRowFields(fields...)
		if !more {
			break
		}

		id := strings.TrimSpace(values[source.IDField])
		if id == "" {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: shape %d has empty %s", kind, order, source.IDField)
		}

		geometry, err := toOrb(g)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: shape %s: %v", kind, id, err)
		}

		layer.Units = append(layer.Units, domain.Unit{
			ID:       id,
			Name:     strings.TrimSpace(values[source.NameField]),
			Geometry: geometry,
			Order:    order,
		})
	}

	if err := dec.Error(); err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("%s: read %s: %w", kind, source.Path, err), apperrors.ErrLayerUnavailable)
	}

	return layer, nil
}

// toOrb переводит полигон shapefile в orb.
// В shapefile все кольца лежат в одном списке: внешние по часовой стрелке, дыры против.
func toOrb(g geom.Geom) (orb.Geometry, error) {
	var rings []geom.Path
	switch v := g.(type) {
	case geom.Polygon:
		rings = v
	case geom.MultiPolygon:
		for _, p := range v {
			rings = append(rings, p...)
		}
	case nil:
		return nil, fmt.Errorf("empty geometry")
	default:
		return nil, fmt.Errorf("geometry %T is not polygonal", g)
	}

	return assembleRings(rings)
}

func assembleRings(paths []geom.Path) (orb.Geometry, error) {
	var (
		shells orb.MultiPolygon
		holes  []orb.Ring
	)

	for _, path := range paths {
		if len(path) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(path)+1)
		for _, p := range path {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}

		if ring.Orientation() == orb.CW {
			shells = append(shells, orb.Polygon{ring})
		} else {
			holes = append(holes, ring)
		}
	}

	// без внешних колец (нестандартный порядок обхода) считаем все кольца внешними
	if len(shells) == 0 {
		for _, h := range holes {
			shells = append(shells, orb.Polygon{h})
		}
		holes = nil
	}
	if len(shells) == 0 {
		return nil, fmt.Errorf("no rings")
	}

	for _, h := range holes {
		for i := range shells {
			if planar.RingContains(shells[i][0], h[0]) {
				shells[i] = append(shells[i], h)
				break
			}
		}
	}

	if len(shells) == 1 {
		return shells[0], nil
	}
	return shells, nil
}
