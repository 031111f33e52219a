package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
)

type unitRecord struct {
	ID       sql.NullString `db:"id"`
	Name     sql.NullString `db:"name"`
	Geometry sql.NullString `db:"geometry"`
	SRID     int            `db:"srid"`
}

type unitLayerRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUnitLayerRepository создает загрузчик слоев единиц из PostGIS таблиц
func NewUnitLayerRepository(db *DB) repository.UnitLayerRepository {
	return &unitLayerRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

func buildUnitLayerQuery(source domain.LayerSource) string {
	geomCol := source.GeomColumn
	if geomCol == "" {
		geomCol = "geom"
	}
	idCol := source.IDField
	if idCol == "" {
		idCol = "id"
	}

	g := quoteIdent(geomCol)
	id := quoteIdent(idCol)
	name := "NULL::text"
	if source.NameField != "" {
		name = quoteIdent(source.NameField) + "::text"
	}

	return fmt.Sprintf(`
		SELECT
			%s::text AS id,
			%s AS name,
			ST_AsGeoJSON(%s) AS geometry,
			ST_SRID(%s) AS srid
		FROM %s
		ORDER BY %s`,
		id, name, g, g, quoteIdent(source.Table), id,
	)
}

func (r *unitLayerRepository) Load(ctx context.Context, kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	var records []unitRecord
	if err := r.db.SelectContext(ctx, &records, buildUnitLayerQuery(source)); err != nil {
		r.logger.Error("Failed to load unit layer",
			zap.String("kind", kind.String()),
			zap.String("table", source.Table),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrLayerUnavailable)
	}

	layer := &domain.UnitLayer{
		Kind:  kind,
		CRS:   source.CRS(),
		Units: make([]domain.Unit, 0, len(records)),
	}

	for i, rec := range records {
		if !rec.ID.Valid || rec.ID.String == "" {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s: row %d in %s has no id", kind, i, source.Table)
		}
		if rec.SRID != 0 && rec.SRID != source.EPSG {
			return nil, errors.Wrapf(errors.ErrCRSMismatch,
				"%s: unit %s has SRID %d, configured EPSG:%d", kind, rec.ID.String, rec.SRID, source.EPSG)
		}
		if !rec.Geometry.Valid {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s: unit %s has no geometry", kind, rec.ID.String)
		}

		g, err := geojson.UnmarshalGeometry([]byte(rec.Geometry.String))
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidLayer, "%s: unit %s: %v", kind, rec.ID.String, err)
		}

		layer.Units = append(layer.Units, domain.Unit{
			ID:       rec.ID.String,
			Name:     rec.Name.String,
			Geometry: g.Geometry(),
			Order:    i,
		})
	}

	return layer, nil
}
