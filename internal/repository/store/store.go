// Package store - каталог прогонов пересчета: прогоны, результаты индикаторов,
// таблицы агрегатов и отчеты точности.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

var _ repository.ResultStore = (*Store)(nil)

// Open подключается к хранилищу: "sqlite" (файл) или "postgres" (DSN для pgx)
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite"
		dsn = sqlitePragmas(dsn)
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}

	logger.Info("Result store opened", zap.String("driver", driver))

	return &Store{
		db:     db,
		driver: driver,
		logger: logger,
	}, nil
}

// sqlitePragmas добавляет busy_timeout: индикаторы пишут параллельно
func sqlitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	s.logger.Info("Closing result store")
	return s.db.Close()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO rescale_runs (run_id, status, started_at) VALUES (?, ?, ?)`),
		runID, domain.RunStatusRunning, startedAt.UTC())
	if err != nil {
		s.logger.Error("Failed to create run", zap.String("run_id", runID), zap.Error(err))
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

func (s *Store) FinishIndicator(ctx context.Context, runID string, result domain.IndicatorResult) error {
	kinds, err := json.Marshal(result.Kinds)
	if err != nil {
		return fmt.Errorf("marshal kinds: %w", err)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM indicator_runs WHERE run_id = ? AND indicator = ?`),
			runID, result.Indicator); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO indicator_runs (run_id, indicator, observations, kinds, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`),
			runID, result.Indicator, result.Observations, string(kinds), result.Error, result.Duration.Milliseconds())
		return err
	})
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE rescale_runs SET status = ?, finished_at = ? WHERE run_id = ?`),
		status, finishedAt.UTC(), runID)
	if err != nil {
		s.logger.Error("Failed to finish run", zap.String("run_id", runID), zap.Error(err))
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrRunNotFound
	}
	return nil
}

type runRecord struct {
	RunID      string       `db:"run_id"`
	Status     string       `db:"status"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r runRecord) toDomain() domain.RunResult {
	run := domain.RunResult{
		RunID:     r.RunID,
		Status:    r.Status,
		StartedAt: r.StartedAt.UTC(),
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	return run
}

type indicatorRecord struct {
	Indicator    string `db:"indicator"`
	Observations int    `db:"observations"`
	Kinds        string `db:"kinds"`
	Error        string `db:"error"`
	DurationMS   int64  `db:"duration_ms"`
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []runRecord
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`
		SELECT run_id, status, started_at, finished_at
		FROM rescale_runs
		ORDER BY started_at DESC, run_id
		LIMIT ?`), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}

	runs := make([]domain.RunResult, 0, len(records))
	for _, r := range records {
		runs = append(runs, r.toDomain())
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunResult, error) {
	var rec runRecord
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(`
		SELECT run_id, status, started_at, finished_at
		FROM rescale_runs
		WHERE run_id = ?`), runID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrRunNotFound
	}
	if err != nil {
		s.logger.Error("Failed to get run", zap.String("run_id", runID), zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}

	var indicators []indicatorRecord
	err = s.db.SelectContext(ctx, &indicators, s.db.Rebind(`
		SELECT indicator, observations, kinds, error, duration_ms
		FROM indicator_runs
		WHERE run_id = ?
		ORDER BY indicator`), runID)
	if err != nil {
		s.logger.Error("Failed to get indicator results", zap.String("run_id", runID), zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}

	run := rec.toDomain()
	run.Indicators = make([]domain.IndicatorResult, 0, len(indicators))
	for _, ind := range indicators {
		result := domain.IndicatorResult{
			Indicator:    ind.Indicator,
			Observations: ind.Observations,
			Error:        ind.Error,
			Duration:     time.Duration(ind.DurationMS) * time.Millisecond,
		}
		if err := json.Unmarshal([]byte(ind.Kinds), &result.Kinds); err != nil {
			return nil, fmt.Errorf("decode kinds of %s: %w", ind.Indicator, err)
		}
		run.Indicators = append(run.Indicators, result)
	}

	return &run, nil
}

// WriteSummaries заменяет таблицу (run, indicator, kind) целиком
func (s *Store) WriteSummaries(
	ctx context.Context,
	runID, indicator string,
	kind domain.UnitKind,
	summaries []domain.UnitSummary,
) (string, error) {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range []string{
			`DELETE FROM unit_summaries WHERE run_id = ? AND indicator = ? AND kind = ?`,
			`DELETE FROM summary_tables WHERE run_id = ? AND indicator = ? AND kind = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), runID, indicator, kind); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO summary_tables (run_id, indicator, kind, units, written_at)
			VALUES (?, ?, ?, ?, ?)`),
			runID, indicator, kind, len(summaries), time.Now().UTC()); err != nil {
			return err
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO unit_summaries (run_id, indicator, kind, unit_id, n, mean_observed, mean_predicted)
			VALUES (?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, su := range summaries {
			if _, err := stmt.ExecContext(ctx, runID, indicator, kind, su.UnitID, su.N, su.MeanObserved, su.MeanPredicted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store summaries",
			zap.String("run_id", runID),
			zap.String("indicator", indicator),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return "", errors.Wrap(err, errors.ErrDatabaseError)
	}

	return fmt.Sprintf("%s:%s/%s/%s", s.driver, runID, indicator, kind), nil
}

func (s *Store) WriteAccuracy(ctx context.Context, runID, indicator string, report domain.AccuracyReport) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM accuracy_reports WHERE run_id = ? AND indicator = ? AND kind = ?`),
			runID, indicator, report.Kind); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO accuracy_reports (run_id, indicator, kind, units, observations, r2, rmse, bias, mae)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			runID, indicator, report.Kind, report.Units, report.Observations,
			report.R2, report.RMSE, report.Bias, report.MAE)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to store accuracy report",
			zap.String("run_id", runID),
			zap.String("indicator", indicator),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

// GetSummaries возвращает таблицу агрегатов; пустая таблица - не ошибка,
// ErrSummaryNotFound - если таблица для (run, indicator, kind) не записывалась
func (s *Store) GetSummaries(ctx context.Context, runID, indicator string, kind domain.UnitKind) ([]domain.UnitSummary, error) {
	var tables int
	err := s.db.GetContext(ctx, &tables, s.db.Rebind(`
		SELECT COUNT(*) FROM summary_tables WHERE run_id = ? AND indicator = ? AND kind = ?`),
		runID, indicator, kind)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	if tables == 0 {
		return nil, errors.ErrSummaryNotFound
	}

	summaries := []domain.UnitSummary{}
	err = s.db.SelectContext(ctx, &summaries, s.db.Rebind(`
		SELECT kind, unit_id, n, mean_observed, mean_predicted
		FROM unit_summaries
		WHERE run_id = ? AND indicator = ? AND kind = ?`),
		runID, indicator, kind)
	if err != nil {
		s.logger.Error("Failed to get summaries",
			zap.String("run_id", runID),
			zap.String("indicator", indicator),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return domain.CompareUnitIDs(summaries[i].UnitID, summaries[j].UnitID) < 0
	})
	return summaries, nil
}

func (s *Store) GetAccuracy(ctx context.Context, runID, indicator string) ([]domain.AccuracyReport, error) {
	reports := []domain.AccuracyReport{}
	err := s.db.SelectContext(ctx, &reports, s.db.Rebind(`
		SELECT indicator, kind, units, observations, r2, rmse, bias, mae
		FROM accuracy_reports
		WHERE run_id = ? AND indicator = ?
		ORDER BY kind`), runID, indicator)
	if err != nil {
		s.logger.Error("Failed to get accuracy reports",
			zap.String("run_id", runID),
			zap.String("indicator", indicator),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return reports, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
