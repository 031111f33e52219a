// Package layer загружает слои единиц агрегации из разных источников.
package layer

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

type unitLayerRepository struct {
	postgis repository.UnitLayerRepository
	logger  *zap.Logger
}

// NewUnitLayerRepository создает загрузчик слоев.
// postgis может быть nil, если БД не настроена: тогда postgis-слои недоступны.
func NewUnitLayerRepository(postgis repository.UnitLayerRepository, logger *zap.Logger) repository.UnitLayerRepository {
	return &unitLayerRepository{
		postgis: postgis,
		logger:  logger,
	}
}

func (r *unitLayerRepository) Load(ctx context.Context, kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		layer *domain.UnitLayer
		err   error
	)

	switch source.Type {
	case domain.LayerSourceGrid:
		layer, err = loadGrid(kind, source)
	case domain.LayerSourceGeoJSON:
		layer, err = loadGeoJSON(kind, source)
	case domain.LayerSourceShapefile:
		layer, err = loadShapefile(kind, source)
	case domain.LayerSourcePostGIS:
		if r.postgis == nil {
			return nil, apperrors.Wrapf(apperrors.ErrLayerUnavailable, "%s: postgis layer requires a database connection", kind)
		}
		layer, err = r.postgis.Load(ctx, kind, source)
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: unknown layer source type %q", kind, source.Type)
	}
	if err != nil {
		r.logger.Error("Failed to load unit layer",
			zap.String("kind", kind.String()),
			zap.String("type", source.Type),
			zap.String("path", source.Path),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("Unit layer loaded",
		zap.String("kind", kind.String()),
		zap.String("type", source.Type),
		zap.String("crs", layer.CRS.String()),
		zap.Int("units", layer.Len()))
	return layer, nil
}

func loadGrid(kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	if source.Grid == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidLayer, "%s: grid layer without grid definition", kind)
	}
	spec := *source.Grid
	return &domain.UnitLayer{
		Kind: kind,
		CRS:  source.CRS(),
		Grid: &spec,
	}, nil
}

// openError переводит ошибку открытия файла слоя в ошибку конфигурации
func openError(kind domain.UnitKind, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrapf(apperrors.ErrLayerUnavailable, "%s: layer file %s not found", kind, path)
	}
	return apperrors.Wrap(err, apperrors.ErrLayerUnavailable)
}

func readFile(kind domain.UnitKind, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(kind, path, err)
	}
	return data, nil
}
