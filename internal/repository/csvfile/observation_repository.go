package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

// IndicatorPlaceholder заменяется именем индикатора в шаблоне пути
const IndicatorPlaceholder = "{indicator}"

// ObservationConfig - параметры чтения табличных наблюдений
type ObservationConfig struct {
	PathPattern string
	Delimiter   rune
	CRS         domain.CRS
	Schema      domain.SchemaMapping
}

type observationRepository struct {
	cfg      ObservationConfig
	resolved map[string]string
	logger   *zap.Logger
}

// NewObservationRepository создает репозиторий наблюдений из CSV файлов
func NewObservationRepository(cfg ObservationConfig, logger *zap.Logger) repository.ObservationRepository {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &observationRepository{
		cfg:      cfg,
		resolved: cfg.Schema.Resolve(),
		logger:   logger,
	}
}

// PathFor возвращает путь к файлу наблюдений индикатора
func (r *observationRepository) PathFor(indicator string) string {
	if !strings.Contains(r.cfg.PathPattern, IndicatorPlaceholder) {
		return r.cfg.PathPattern
	}
	return strings.ReplaceAll(r.cfg.PathPattern, IndicatorPlaceholder, indicator)
}

func (r *observationRepository) Load(ctx context.Context, indicator string) (*domain.ObservationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := r.PathFor(indicator)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrapf(apperrors.ErrObservationsUnavailable, "observation file %s not found", path)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrObservationsUnavailable)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = r.cfg.Delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rr := &renamingReader{Reader: reader, resolved: r.resolved}

	var rows []*observationRow
	if err := gocsv.UnmarshalCSV(rr, &rows); err != nil && rr.header != nil {
		return nil, apperrors.Wrap(fmt.Errorf("parse %s: %w", path, err), apperrors.ErrObservationsUnavailable)
	}

	if rr.header == nil {
		return nil, apperrors.Wrapf(apperrors.ErrMissingColumn, "%s: empty file, no header", path)
	}
	if missing := domain.MissingColumns(rr.header); len(missing) > 0 {
		return nil, apperrors.Wrapf(apperrors.ErrMissingColumn, "%s: missing columns %s", path, strings.Join(missing, ", "))
	}

	set := &domain.ObservationSet{
		Indicator:    indicator,
		CRS:          r.cfg.CRS,
		Observations: make([]domain.Observation, 0, len(rows)),
	}
	for i, row := range rows {
		obs, ok := row.toObservation()
		if !ok {
			set.Skipped++
			r.logger.Debug("Skipping observation row",
				zap.String("indicator", indicator),
				zap.Int("row", i+2),
				zap.String("site_visit_id", row.SiteVisitID))
			continue
		}
		set.Observations = append(set.Observations, obs)
	}

	if dups := set.DropDuplicateVisits(); len(dups) > 0 {
		r.logger.Warn("Duplicate site visits skipped",
			zap.String("indicator", indicator),
			zap.String("path", path),
			zap.Int("count", len(dups)),
			zap.Strings("site_visit_ids", firstN(dups, 10)))
	}

	r.logger.Info("Observations loaded",
		zap.String("indicator", indicator),
		zap.String("path", path),
		zap.Int("count", len(set.Observations)),
		zap.Int("skipped", set.Skipped))

	return set, nil
}

func (row *observationRow) toObservation() (domain.Observation, bool) {
	id := strings.TrimSpace(row.SiteVisitID)
	if id == "" {
		return domain.Observation{}, false
	}

	var values [4]float64
	for i, raw := range []string{row.X, row.Y, row.Observed, row.Predicted} {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Observation{}, false
		}
		values[i] = v
	}

	obs := domain.Observation{
		SiteVisitID: id,
		X:           values[0],
		Y:           values[1],
		Observed:    values[2],
		Predicted:   values[3],
	}

	if v := strings.TrimSpace(row.VisitDate); v != "" {
		obs.Attributes = map[string]string{domain.ColumnVisitDate: v}
	}
	if v := strings.TrimSpace(row.ProjectCode); v != "" {
		if obs.Attributes == nil {
			obs.Attributes = make(map[string]string, 1)
		}
		obs.Attributes[domain.ColumnProjectCode] = v
	}

	return obs, true
}

func firstN(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}
