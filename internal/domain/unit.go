package domain

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// UnitKind - тип единиц агрегации
type UnitKind string

const (
	// UnitKindGrid - регулярная сетка квадратных ячеек
	UnitKindGrid UnitKind = "grid"
	// UnitKindRegion - именованные регионы (экологические или административные)
	UnitKindRegion UnitKind = "region"
)

func (k UnitKind) String() string {
	return string(k)
}

// Unit - полигон единицы агрегации
type Unit struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Geometry orb.Geometry `json:"-"`

	// Order - позиция в слое; при перекрытии побеждает меньший Order
	Order int `json:"order"`
}

// GridSpec - арифметическое описание регулярной сетки
type GridSpec struct {
	OriginX  float64 `json:"origin_x" mapstructure:"origin_x"`
	OriginY  float64 `json:"origin_y" mapstructure:"origin_y"`
	CellSize float64 `json:"cell_size" mapstructure:"cell_size" validate:"gt=0"`
	Cols     int     `json:"cols" mapstructure:"cols" validate:"gt=0"`
	Rows     int     `json:"rows" mapstructure:"rows" validate:"gt=0"`
}

// Bound возвращает охват сетки
func (g GridSpec) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY},
		Max: orb.Point{
			g.OriginX + g.CellSize*float64(g.Cols),
			g.OriginY + g.CellSize*float64(g.Rows),
		},
	}
}

// UnitLayer - набор единиц одного типа в одной CRS.
// После загрузки не изменяется и разделяется между индикаторами только на чтение.
type UnitLayer struct {
	Kind  UnitKind  `json:"kind"`
	CRS   CRS       `json:"crs"`
	Units []Unit    `json:"units"`
	Grid  *GridSpec `json:"grid,omitempty"`
}

// Len возвращает число единиц в слое
func (l *UnitLayer) Len() int {
	if l == nil {
		return 0
	}
	if l.Grid != nil && len(l.Units) == 0 {
		return l.Grid.Cols * l.Grid.Rows
	}
	return len(l.Units)
}

// CompareUnitIDs задает естественный порядок идентификаторов:
// целые числа сравниваются численно и идут раньше строковых,
// строковые сравниваются лексикографически.
func CompareUnitIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)

	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}

	return strings.Compare(a, b)
}
