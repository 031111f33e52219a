// Package bootstrap собирает пайплайн пересчета из конфигурации.
// Используется API, воркером и CLI.
package bootstrap

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/config"
	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/repository/csvfile"
	"github.com/landscape-rescale/internal/repository/layer"
	"github.com/landscape-rescale/internal/repository/postgres"
	"github.com/landscape-rescale/internal/repository/store"
	"github.com/landscape-rescale/internal/usecase"
)

// Pipeline - собранный use case и открытые им соединения
type Pipeline struct {
	UseCase *usecase.RescaleUseCase
	Store   *store.Store
	DB      *postgres.DB

	logger *zap.Logger
}

// NewPipeline открывает источники, приемники и каталог прогонов.
// PostgreSQL подключается только если его использует источник наблюдений или слой.
func NewPipeline(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*Pipeline, error) {
	p := &Pipeline{logger: logger}

	if NeedsDatabase(cfg) {
		db, err := postgres.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		p.DB = db
	}

	observations, err := p.observationRepository(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}

	var postgisLayers repository.UnitLayerRepository
	if p.DB != nil {
		postgisLayers = postgres.NewUnitLayerRepository(p.DB)
	}
	layers := layer.NewUnitLayerRepository(postgisLayers, logger)

	var writer repository.SummaryWriter = csvfile.NewSummaryWriter(cfg.Output.Dir, logger)
	if cfg.Store.Enabled {
		s, err := OpenStore(cfg, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Store = s
		writer = usecase.NewMultiWriter(writer, s)
	}

	p.UseCase = usecase.NewRescaleUseCase(observations, layers, writer, UnitKinds(cfg), collector, logger)
	if p.Store != nil {
		p.UseCase.WithStore(p.Store)
	}

	return p, nil
}

func (p *Pipeline) observationRepository(cfg *config.Config) (repository.ObservationRepository, error) {
	switch cfg.Observations.Source {
	case "postgis":
		return postgres.NewObservationRepository(p.DB, postgres.ObservationSource{
			Table:           cfg.Observations.Table,
			IndicatorColumn: cfg.Observations.IndicatorColumn,
			GeomColumn:      cfg.Observations.GeomColumn,
			EPSG:            cfg.Observations.EPSG,
			Schema:          cfg.Observations.Schema,
		}), nil
	case "csv":
		delimiter, _ := utf8.DecodeRuneInString(cfg.Observations.Delimiter)
		return csvfile.NewObservationRepository(csvfile.ObservationConfig{
			PathPattern: cfg.Observations.Path,
			Delimiter:   delimiter,
			CRS:         cfg.ObservationCRS(),
			Schema:      cfg.Observations.Schema,
		}, p.logger), nil
	}
	return nil, fmt.Errorf("unsupported observations source %q", cfg.Observations.Source)
}

// Close закрывает соединения в обратном порядке
func (p *Pipeline) Close() {
	if p.Store != nil {
		if err := p.Store.Close(); err != nil {
			p.logger.Error("Failed to close result store", zap.Error(err))
		}
	}
	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			p.logger.Error("Failed to close PostgreSQL connection", zap.Error(err))
		}
	}
}

// OpenStore открывает каталог прогонов и при auto_migrate применяет миграции
func OpenStore(cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	s, err := store.Open(cfg.Store.Driver, cfg.GetStoreDSN(), logger)
	if err != nil {
		return nil, err
	}
	if cfg.Store.AutoMigrate {
		if err := s.MigrateUp(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NeedsDatabase проверяет, читает ли пайплайн что-либо из PostGIS
func NeedsDatabase(cfg *config.Config) bool {
	if cfg.Observations.Source == "postgis" {
		return true
	}
	for _, uk := range cfg.UnitKinds {
		if uk.Layer.Type == domain.LayerSourcePostGIS {
			return true
		}
	}
	return false
}

// UnitKinds переводит конфигурацию типов единиц в параметры use case
func UnitKinds(cfg *config.Config) []usecase.UnitKindConfig {
	kinds := make([]usecase.UnitKindConfig, 0, len(cfg.UnitKinds))
	for _, uk := range cfg.UnitKinds {
		kinds = append(kinds, usecase.UnitKindConfig{
			Kind:         uk.Kind,
			Layer:        uk.Layer,
			MinimumCount: uk.MinimumCount,
			Accuracy:     uk.Accuracy,
		})
	}
	return kinds
}
