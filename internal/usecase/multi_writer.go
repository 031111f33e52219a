package usecase

import (
	"context"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
)

// MultiWriter пишет каждую таблицу во все приемники по порядку.
// Идентификатор артефакта берется у первого приемника; первая ошибка прерывает запись.
type MultiWriter struct {
	writers []repository.SummaryWriter
}

var _ repository.SummaryWriter = (*MultiWriter)(nil)

func NewMultiWriter(writers ...repository.SummaryWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) WriteSummaries(
	ctx context.Context,
	runID, indicator string,
	kind domain.UnitKind,
	summaries []domain.UnitSummary,
) (string, error) {
	var artifact string
	for i, w := range m.writers {
		a, err := w.WriteSummaries(ctx, runID, indicator, kind, summaries)
		if err != nil {
			return "", err
		}
		if i == 0 {
			artifact = a
		}
	}
	return artifact, nil
}

func (m *MultiWriter) WriteAccuracy(ctx context.Context, runID, indicator string, report domain.AccuracyReport) error {
	for _, w := range m.writers {
		if err := w.WriteAccuracy(ctx, runID, indicator, report); err != nil {
			return err
		}
	}
	return nil
}
