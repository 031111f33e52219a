package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

// SummaryWriter пишет таблицы агрегатов в <dir>/<indicator>_<kind>.csv
// и отчеты точности в <dir>/<indicator>_accuracy.csv
type SummaryWriter struct {
	dir    string
	logger *zap.Logger

	// accuracy файл индикатора дописывается по одному типу единиц
	mu sync.Mutex
}

var _ repository.SummaryWriter = (*SummaryWriter)(nil)

func NewSummaryWriter(dir string, logger *zap.Logger) *SummaryWriter {
	return &SummaryWriter{
		dir:    dir,
		logger: logger,
	}
}

// SummaryPath возвращает путь таблицы агрегатов
func (w *SummaryWriter) SummaryPath(indicator string, kind domain.UnitKind) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", indicator, kind))
}

// AccuracyPath возвращает путь отчета точности индикатора
func (w *SummaryWriter) AccuracyPath(indicator string) string {
	return filepath.Join(w.dir, indicator+"_accuracy.csv")
}

func (w *SummaryWriter) WriteSummaries(
	ctx context.Context,
	runID, indicator string,
	kind domain.UnitKind,
	summaries []domain.UnitSummary,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := w.SummaryPath(indicator, kind)
	rows := toSummaryRows(summaries)
	if err := writeAtomic(path, &rows); err != nil {
		w.logger.Error("Failed to write summaries",
			zap.String("indicator", indicator),
			zap.String("kind", kind.String()),
			zap.String("path", path),
			zap.Error(err))
		return "", apperrors.Wrap(err, apperrors.ErrOutputError)
	}

	w.logger.Debug("Summaries written",
		zap.String("run_id", runID),
		zap.String("indicator", indicator),
		zap.String("kind", kind.String()),
		zap.Int("units", len(rows)),
		zap.String("path", path))
	return path, nil
}

// WriteAccuracy добавляет или заменяет строку типа единиц.
// Строки других прогонов отбрасываются.
func (w *SummaryWriter) WriteAccuracy(ctx context.Context, runID, indicator string, report domain.AccuracyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.AccuracyPath(indicator)
	existing, err := readAccuracy(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrOutputError)
	}

	rows := make([]*accuracyRow, 0, len(existing)+1)
	for _, row := range existing {
		if row.RunID == runID && row.Kind != report.Kind.String() {
			rows = append(rows, row)
		}
	}
	rows = append(rows, toAccuracyRow(runID, report))
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })

	if err := writeAtomic(path, &rows); err != nil {
		return apperrors.Wrap(err, apperrors.ErrOutputError)
	}
	return nil
}

func readAccuracy(path string) ([]*accuracyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rows []*accuracyRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// writeAtomic пишет CSV во временный файл рядом с целевым и переименовывает его.
// Заголовок пишется всегда, даже для пустой таблицы.
func writeAtomic(path string, rows interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gocsv.MarshalFile(rows, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
