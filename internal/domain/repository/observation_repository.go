package repository

import (
	"context"

	"github.com/landscape-rescale/internal/domain"
)

// ObservationRepository загружает записи наблюдений индикатора
type ObservationRepository interface {
	Load(ctx context.Context, indicator string) (*domain.ObservationSet, error)
}
