package repository

import (
	"context"

	"github.com/landscape-rescale/internal/domain"
)

// UnitLayerRepository загружает слой единиц агрегации.
// Недоступный или нечитаемый источник - ошибка конфигурации.
type UnitLayerRepository interface {
	Load(ctx context.Context, kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error)
}
