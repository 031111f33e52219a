package spatial

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/errors"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// Index - R-tree по охватам единиц слоя с точной проверкой вхождения.
// Неизменяем после построения; безопасен для конкурентного чтения.
type Index struct {
	kind  domain.UnitKind
	tree  *rtree.Rtree
	units []*indexedUnit
}

type indexedUnit struct {
	// Polygonal - охват единицы, по нему работает R-tree
	geom.Polygonal

	id       string
	order    int
	geometry orb.Geometry
}

// NewIndex строит индекс по слою полигонов
func NewIndex(layer *domain.UnitLayer) (*Index, error) {
	idx := &Index{
		kind:  layer.Kind,
		tree:  rtree.NewTree(rtreeMinChildren, rtreeMaxChildren),
		units: make([]*indexedUnit, 0, len(layer.Units)),
	}

	seen := make(map[string]struct{}, len(layer.Units))
	for _, u := range layer.Units {
		if u.ID == "" {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s layer: unit at position %d has no id", layer.Kind, u.Order)
		}
		if _, dup := seen[u.ID]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s layer: duplicate unit id %q", layer.Kind, u.ID)
		}
		seen[u.ID] = struct{}{}

		g, err := polygonal(u.Geometry)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s layer: unit %q: %v", layer.Kind, u.ID, err)
		}

		b := g.Bound()
		iu := &indexedUnit{
			Polygonal: &geom.Bounds{
				Min: geom.Point{X: b.Min[0], Y: b.Min[1]},
				Max: geom.Point{X: b.Max[0], Y: b.Max[1]},
			},
			id:       u.ID,
			order:    u.Order,
			geometry: g,
		}
		idx.units = append(idx.units, iu)
		idx.tree.Insert(iu)
	}

	return idx, nil
}

// Len возвращает число единиц в индексе
func (idx *Index) Len() int {
	return len(idx.units)
}

// Locate возвращает единицу с наименьшим Order среди содержащих точку
func (idx *Index) Locate(p orb.Point) (string, bool) {
	if len(idx.units) == 0 {
		return "", false
	}

	var best *indexedUnit
	for _, c := range idx.tree.SearchIntersect(queryBox(p)) {
		u := c.(*indexedUnit)
		if best != nil && !precedes(u, best) {
			continue
		}
		if contains(u.geometry, p) {
			best = u
		}
	}

	if best == nil {
		return "", false
	}
	return best.id, true
}

func precedes(a, b *indexedUnit) bool {
	if a.order != b.order {
		return a.order < b.order
	}
	return domain.CompareUnitIDs(a.id, b.id) < 0
}

// queryBox - охват точки, чуть расширенный, чтобы точки на краю охвата полигона
// не терялись из-за строгого сравнения в R-tree
func queryBox(p orb.Point) *geom.Bounds {
	eps := 1e-9 * math.Max(1, math.Max(math.Abs(p[0]), math.Abs(p[1])))
	return &geom.Bounds{
		Min: geom.Point{X: p[0] - eps, Y: p[1] - eps},
		Max: geom.Point{X: p[0] + eps, Y: p[1] + eps},
	}
}

func polygonal(g orb.Geometry) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 || len(v[0]) < 3 {
			return nil, errEmptyGeometry
		}
		return v, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, errEmptyGeometry
		}
		return v, nil
	case orb.Bound:
		return v.ToPolygon(), nil
	case nil:
		return nil, errEmptyGeometry
	default:
		return nil, errNotPolygonal{geometryType: g.GeoJSONType()}
	}
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	}
	return false
}
