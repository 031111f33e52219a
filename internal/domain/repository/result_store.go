package repository

import (
	"context"
	"time"

	"github.com/landscape-rescale/internal/domain"
)

// ResultStore - каталог прогонов и их результатов
type ResultStore interface {
	SummaryWriter

	CreateRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishIndicator(ctx context.Context, runID string, result domain.IndicatorResult) error
	FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error

	// ListRuns возвращает последние прогоны, новые первыми
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)

	// GetRun возвращает прогон с результатами индикаторов; ErrRunNotFound если его нет
	GetRun(ctx context.Context, runID string) (*domain.RunResult, error)

	GetSummaries(ctx context.Context, runID, indicator string, kind domain.UnitKind) ([]domain.UnitSummary, error)
	GetAccuracy(ctx context.Context, runID, indicator string) ([]domain.AccuracyReport, error)
}
