package spatial

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/errors"
)

// Grid - регулярная сетка, точка находится арифметически без перебора полигонов.
// Идентификатор ячейки: row*Cols + col, отсчет от левого нижнего угла.
type Grid struct {
	spec domain.GridSpec
}

// NewGrid проверяет параметры сетки
func NewGrid(spec domain.GridSpec) (*Grid, error) {
	if !(spec.CellSize > 0) || !finite(spec.CellSize) {
		return nil, errors.Wrapf(errors.ErrInvalidLayer, "grid cell size must be positive, got %v", spec.CellSize)
	}
	if spec.Cols <= 0 || spec.Rows <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidLayer, "grid must have positive cols and rows, got %dx%d", spec.Cols, spec.Rows)
	}
	if !finite(spec.OriginX) || !finite(spec.OriginY) {
		return nil, errors.Wrapf(errors.ErrInvalidLayer, "grid origin must be finite")
	}
	return &Grid{spec: spec}, nil
}

// Locate находит ячейку, содержащую точку
func (g *Grid) Locate(p orb.Point) (string, bool) {
	row, col, ok := g.Cell(p)
	if !ok {
		return "", false
	}
	return g.CellID(row, col), true
}

// Cell возвращает строку и столбец ячейки
func (g *Grid) Cell(p orb.Point) (row, col int, ok bool) {
	fc := math.Floor((p[0] - g.spec.OriginX) / g.spec.CellSize)
	fr := math.Floor((p[1] - g.spec.OriginY) / g.spec.CellSize)
	if !finite(fc) || !finite(fr) {
		return 0, 0, false
	}
	if fc < 0 || fr < 0 || fc >= float64(g.spec.Cols) || fr >= float64(g.spec.Rows) {
		return 0, 0, false
	}
	return int(fr), int(fc), true
}

// CellID формирует идентификатор ячейки
func (g *Grid) CellID(row, col int) string {
	return strconv.Itoa(row*g.spec.Cols + col)
}

// CellBound возвращает прямоугольник ячейки
func (g *Grid) CellBound(row, col int) orb.Bound {
	x0 := g.spec.OriginX + float64(col)*g.spec.CellSize
	y0 := g.spec.OriginY + float64(row)*g.spec.CellSize
	return orb.Bound{
		Min: orb.Point{x0, y0},
		Max: orb.Point{x0 + g.spec.CellSize, y0 + g.spec.CellSize},
	}
}

// Units материализует ячейки в полигоны (для экспорта сетки)
func (g *Grid) Units() []domain.Unit {
	units := make([]domain.Unit, 0, g.spec.Cols*g.spec.Rows)
	for row := 0; row < g.spec.Rows; row++ {
		for col := 0; col < g.spec.Cols; col++ {
			units = append(units, domain.Unit{
				ID:       g.CellID(row, col),
				Geometry: g.CellBound(row, col).ToPolygon(),
				Order:    row*g.spec.Cols + col,
			})
		}
	}
	return units
}
