package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/spatial"
)

// LayerRegistry загружает слой каждого типа единиц один раз за прогон.
// Слой и построенный по нему локатор после загрузки только читаются,
// ошибка загрузки тоже запоминается: все индикаторы прогона получают одну и ту же.
type LayerRegistry struct {
	repo    repository.UnitLayerRepository
	entries map[domain.UnitKind]*layerEntry
	metrics *metrics.Collector
	logger  *zap.Logger
}

type layerEntry struct {
	source domain.LayerSource

	once    sync.Once
	layer   *domain.UnitLayer
	locator spatial.Locator
	err     error
}

func NewLayerRegistry(
	repo repository.UnitLayerRepository,
	kinds []UnitKindConfig,
	collector *metrics.Collector,
	logger *zap.Logger,
) *LayerRegistry {
	entries := make(map[domain.UnitKind]*layerEntry, len(kinds))
	for _, k := range kinds {
		entries[k.Kind] = &layerEntry{source: k.Layer}
	}
	return &LayerRegistry{
		repo:    repo,
		entries: entries,
		metrics: collector,
		logger:  logger,
	}
}

// Get возвращает слой и локатор для типа единиц
func (r *LayerRegistry) Get(ctx context.Context, kind domain.UnitKind) (*domain.UnitLayer, spatial.Locator, error) {
	entry, ok := r.entries[kind]
	if !ok {
		return nil, nil, errUnknownKind(kind)
	}

	entry.once.Do(func() {
		timer := r.metrics.StartStage("load_layer")
		defer timer.ObserveDuration()

		layer, err := r.repo.Load(ctx, kind, entry.source)
		if err != nil {
			r.logger.Error("Failed to load unit layer",
				zap.String("kind", kind.String()),
				zap.String("source", entry.source.Type),
				zap.Error(err))
			entry.err = err
			return
		}

		locator, err := spatial.NewLocator(layer)
		if err != nil {
			r.logger.Error("Failed to index unit layer",
				zap.String("kind", kind.String()),
				zap.Error(err))
			entry.err = err
			return
		}

		r.logger.Info("Unit layer loaded",
			zap.String("kind", kind.String()),
			zap.String("source", entry.source.Type),
			zap.String("crs", layer.CRS.String()),
			zap.Int("units", layer.Len()))

		entry.layer = layer
		entry.locator = locator
	})

	return entry.layer, entry.locator, entry.err
}
