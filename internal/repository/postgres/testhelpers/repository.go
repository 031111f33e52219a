package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/repository/postgres"
)

// NewDBForTest creates a postgres.DB with test database and logger
func NewDBForTest(db *sqlx.DB, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, logger)
}

// NewObservationRepositoryForTest creates an observation repository over a fixture table
func NewObservationRepositoryForTest(db *sqlx.DB, logger *zap.Logger, source postgres.ObservationSource) repository.ObservationRepository {
	return postgres.NewObservationRepository(NewDBForTest(db, logger), source)
}

// NewUnitLayerRepositoryForTest creates a unit layer repository with test database and logger
func NewUnitLayerRepositoryForTest(db *sqlx.DB, logger *zap.Logger) repository.UnitLayerRepository {
	return postgres.NewUnitLayerRepository(NewDBForTest(db, logger))
}
