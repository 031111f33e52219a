package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/validator"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// ResultsUseCase - чтение результатов прогонов для API.
// Таблицы агрегатов и отчеты точности неизменны для run id, поэтому кешируются.
type ResultsUseCase struct {
	store  repository.ResultStore
	cache  repository.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewResultsUseCase(
	store repository.ResultStore,
	cache repository.CacheRepository,
	ttl time.Duration,
	logger *zap.Logger,
) *ResultsUseCase {
	return &ResultsUseCase{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (uc *ResultsUseCase) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	return uc.store.ListRuns(ctx, limit)
}

func (uc *ResultsUseCase) GetRun(ctx context.Context, runID string) (*domain.RunResult, error) {
	if runID == "" {
		return nil, errors.ErrInvalidRequest.WithDetails(map[string]interface{}{"run_id": "required"})
	}
	return uc.store.GetRun(ctx, runID)
}

func (uc *ResultsUseCase) GetSummaries(
	ctx context.Context,
	runID, indicator string,
	kind domain.UnitKind,
) ([]domain.UnitSummary, error) {
	if err := validateResultKey(runID, indicator); err != nil {
		return nil, err
	}
	if err := validator.ValidateVar(kind.String(), "required,unitkind"); err != nil {
		return nil, errors.ErrInvalidRequest.WithDetails(map[string]interface{}{"kind": kind.String()})
	}

	key := summariesCacheKey(runID, indicator, kind)
	var summaries []domain.UnitSummary
	if uc.fromCache(ctx, key, &summaries) {
		return summaries, nil
	}

	summaries, err := uc.store.GetSummaries(ctx, runID, indicator, kind)
	if err != nil {
		return nil, err
	}
	uc.toCache(ctx, key, summaries)
	return summaries, nil
}

func (uc *ResultsUseCase) GetAccuracy(ctx context.Context, runID, indicator string) ([]domain.AccuracyReport, error) {
	if err := validateResultKey(runID, indicator); err != nil {
		return nil, err
	}

	key := accuracyCacheKey(runID, indicator)
	var reports []domain.AccuracyReport
	if uc.fromCache(ctx, key, &reports) {
		return reports, nil
	}

	reports, err := uc.store.GetAccuracy(ctx, runID, indicator)
	if err != nil {
		return nil, err
	}
	// пустой ответ может означать незавершенный прогон: не кешируем
	if len(reports) > 0 {
		uc.toCache(ctx, key, reports)
	}
	return reports, nil
}

func summariesCacheKey(runID, indicator string, kind domain.UnitKind) string {
	return fmt.Sprintf("rescale:summaries:%s:%s:%s", runID, indicator, kind)
}

func accuracyCacheKey(runID, indicator string) string {
	return fmt.Sprintf("rescale:accuracy:%s:%s", runID, indicator)
}

func validateResultKey(runID, indicator string) error {
	if runID == "" {
		return errors.ErrInvalidRequest.WithDetails(map[string]interface{}{"run_id": "required"})
	}
	if err := validator.ValidateVar(indicator, "required,indicator"); err != nil {
		return errors.ErrInvalidRequest.WithDetails(map[string]interface{}{"indicator": indicator})
	}
	return nil
}

// fromCache - ошибки кеша не фатальны, читаем из хранилища
func (uc *ResultsUseCase) fromCache(ctx context.Context, key string, dst interface{}) bool {
	if uc.cache == nil {
		return false
	}
	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		uc.logger.Warn("Cache entry is corrupted", zap.String("key", key), zap.Error(err))
		return false
	}
	uc.logger.Debug("Cache hit", zap.String("key", key))
	return true
}

func (uc *ResultsUseCase) toCache(ctx context.Context, key string, value interface{}) {
	if uc.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, key, data, uc.ttl); err != nil {
		uc.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
