package spatial

import (
	"github.com/paulmach/orb"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/errors"
)

// Locator находит единицу, содержащую точку
type Locator interface {
	// Locate возвращает идентификатор единицы; ok=false если точка вне всех единиц
	Locate(p orb.Point) (unitID string, ok bool)
}

// NewLocator выбирает реализацию для слоя: арифметическую сетку или R-tree индекс полигонов
func NewLocator(layer *domain.UnitLayer) (Locator, error) {
	if layer == nil {
		return nil, errors.Wrapf(errors.ErrInvalidLayer, "nil unit layer")
	}
	if layer.Grid != nil {
		return NewGrid(*layer.Grid)
	}
	return NewIndex(layer)
}

// CheckCRS проверяет совпадение CRS наблюдений и слоя.
// Несовпадение - фатальная ошибка конфигурации: она портит всю статистику.
func CheckCRS(observations, layer domain.CRS) error {
	if !observations.IsKnown() || !layer.IsKnown() {
		return errors.Wrapf(errors.ErrCRSMismatch,
			"coordinate reference system not declared (observations %s, layer %s)", observations, layer)
	}
	if observations.EPSG != layer.EPSG {
		return errors.Wrapf(errors.ErrCRSMismatch,
			"observations in %s, layer in %s", observations, layer)
	}
	return nil
}
