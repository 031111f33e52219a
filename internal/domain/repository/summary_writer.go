package repository

import (
	"context"

	"github.com/landscape-rescale/internal/domain"
)

// SummaryWriter сохраняет таблицы агрегатов и отчеты точности
type SummaryWriter interface {
	// WriteSummaries записывает таблицу (indicator, kind); пустая таблица допустима.
	// Возвращает идентификатор артефакта (путь к файлу, ключ в хранилище).
	WriteSummaries(ctx context.Context, runID, indicator string, kind domain.UnitKind, summaries []domain.UnitSummary) (string, error)

	// WriteAccuracy записывает отчет точности для (indicator, kind)
	WriteAccuracy(ctx context.Context, runID, indicator string, report domain.AccuracyReport) error
}
