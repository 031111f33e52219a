package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
)

// ObservationSource - таблица наблюдений всех индикаторов
type ObservationSource struct {
	Table           string
	IndicatorColumn string
	// GeomColumn - точечная геометрия; если пусто, координаты берутся из колонок x/y
	GeomColumn string
	EPSG       int
	Schema     domain.SchemaMapping
}

type observationRecord struct {
	SiteVisitID sql.NullString  `db:"site_visit_id"`
	X           sql.NullFloat64 `db:"x"`
	Y           sql.NullFloat64 `db:"y"`
	Observed    sql.NullFloat64 `db:"observed_value"`
	Predicted   sql.NullFloat64 `db:"predicted_value"`
	SRID        sql.NullInt64   `db:"srid"`
	VisitDate   sql.NullString  `db:"visit_date"`
	ProjectCode sql.NullString  `db:"project_code"`
}

type observationRepository struct {
	db     *sqlx.DB
	source ObservationSource
	query  string
	logger *zap.Logger
}

// NewObservationRepository создает репозиторий наблюдений из PostGIS таблицы
func NewObservationRepository(db *DB, source ObservationSource) repository.ObservationRepository {
	if source.IndicatorColumn == "" {
		source.IndicatorColumn = "indicator"
	}
	return &observationRepository{
		db:     db.DB,
		source: source,
		query:  buildObservationQuery(source),
		logger: db.logger,
	}
}

func buildObservationQuery(s ObservationSource) string {
	col := func(canonical string) string {
		return quoteIdent(s.Schema.SourceFor(canonical))
	}

	var x, y, srid string
	if s.GeomColumn != "" {
		g := quoteIdent(s.GeomColumn)
		x = fmt.Sprintf("ST_X(%s)", g)
		y = fmt.Sprintf("ST_Y(%s)", g)
		srid = fmt.Sprintf("ST_SRID(%s)", g)
	} else {
		x = col(domain.ColumnX) + "::float8"
		y = col(domain.ColumnY) + "::float8"
		srid = "NULL::int"
	}

	fields := []string{
		col(domain.ColumnSiteVisitID) + "::text AS site_visit_id",
		x + " AS x",
		y + " AS y",
		col(domain.ColumnObserved) + "::float8 AS observed_value",
		col(domain.ColumnPredicted) + "::float8 AS predicted_value",
		srid + " AS srid",
	}
	// необязательные атрибуты выбираются, только если для них задано правило
	for _, cm := range s.Schema {
		for _, attr := range domain.AttributeColumns {
			if cm.Canonical == attr {
				fields = append(fields, fmt.Sprintf("%s::text AS %s", quoteIdent(cm.Source), attr))
			}
		}
	}

	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 ORDER BY 1",
		strings.Join(fields, ", "),
		quoteIdent(s.Table),
		quoteIdent(s.IndicatorColumn),
	)
}

func (r *observationRepository) Load(ctx context.Context, indicator string) (*domain.ObservationSet, error) {
	var records []observationRecord
	if err := r.db.SelectContext(ctx, &records, r.query, indicator); err != nil {
		r.logger.Error("Failed to load observations",
			zap.String("indicator", indicator),
			zap.String("table", r.source.Table),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrObservationsUnavailable)
	}

	set := &domain.ObservationSet{
		Indicator:    indicator,
		CRS:          domain.NewCRS(r.source.EPSG),
		Observations: make([]domain.Observation, 0, len(records)),
	}

	srid, err := singleSRID(records)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCRSMismatch, "%s: %v in %s", indicator, err, r.source.Table)
	}
	if srid > 0 {
		set.CRS = domain.NewCRS(int(srid))
	}

	for _, rec := range records {
		obs, ok := rec.toObservation()
		if !ok {
			set.Skipped++
			continue
		}
		set.Observations = append(set.Observations, obs)
	}

	if dups := set.DropDuplicateVisits(); len(dups) > 0 {
		r.logger.Warn("Duplicate site visits skipped",
			zap.String("indicator", indicator),
			zap.String("table", r.source.Table),
			zap.Int("count", len(dups)))
	}

	r.logger.Info("Observations loaded",
		zap.String("indicator", indicator),
		zap.String("table", r.source.Table),
		zap.String("crs", set.CRS.String()),
		zap.Int("count", len(set.Observations)),
		zap.Int("skipped", set.Skipped))

	return set, nil
}

// singleSRID возвращает общий SRID геометрий; 0 (не задан) тоже считается отдельным значением
func singleSRID(records []observationRecord) (int64, error) {
	var (
		srid  int64
		found bool
	)
	for _, rec := range records {
		if !rec.SRID.Valid {
			continue
		}
		if found && rec.SRID.Int64 != srid {
			return 0, fmt.Errorf("mixed SRIDs %d and %d", srid, rec.SRID.Int64)
		}
		srid, found = rec.SRID.Int64, true
	}
	return srid, nil
}

func (rec observationRecord) toObservation() (domain.Observation, bool) {
	if !rec.SiteVisitID.Valid || strings.TrimSpace(rec.SiteVisitID.String) == "" {
		return domain.Observation{}, false
	}
	for _, v := range []sql.NullFloat64{rec.X, rec.Y, rec.Observed, rec.Predicted} {
		if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
			return domain.Observation{}, false
		}
	}

	obs := domain.Observation{
		SiteVisitID: rec.SiteVisitID.String,
		X:           rec.X.Float64,
		Y:           rec.Y.Float64,
		Observed:    rec.Observed.Float64,
		Predicted:   rec.Predicted.Float64,
	}
	if rec.VisitDate.Valid && rec.VisitDate.String != "" {
		obs.Attributes = map[string]string{domain.ColumnVisitDate: rec.VisitDate.String}
	}
	if rec.ProjectCode.Valid && rec.ProjectCode.String != "" {
		if obs.Attributes == nil {
			obs.Attributes = make(map[string]string, 1)
		}
		obs.Attributes[domain.ColumnProjectCode] = rec.ProjectCode.String
	}
	return obs, true
}
