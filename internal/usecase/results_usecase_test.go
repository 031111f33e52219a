package usecase_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	pkgerrors "github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/usecase"
)

const summariesKey = "rescale:summaries:run-1:acacia:grid"

func TestResultsUseCase_GetSummaries(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	summaries := []domain.UnitSummary{
		{Kind: domain.UnitKindGrid, UnitID: "0", N: 5, MeanObserved: 14, MeanPredicted: 13.8},
	}

	t.Run("cache miss reads store and fills cache", func(t *testing.T) {
		store := &MockResultStore{}
		cache := &MockCacheRepository{}
		uc := usecase.NewResultsUseCase(store, cache, ttl, zap.NewNop())

		cached, _ := json.Marshal(summaries)
		cache.On("Get", ctx, summariesKey).Return(nil, nil)
		store.On("GetSummaries", ctx, "run-1", "acacia", domain.UnitKindGrid).Return(summaries, nil)
		cache.On("Set", ctx, summariesKey, cached, ttl).Return(nil)

		got, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKindGrid)
		require.NoError(t, err)
		assert.Equal(t, summaries, got)
		store.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips store", func(t *testing.T) {
		store := &MockResultStore{}
		cache := &MockCacheRepository{}
		uc := usecase.NewResultsUseCase(store, cache, ttl, zap.NewNop())

		cached, _ := json.Marshal(summaries)
		cache.On("Get", ctx, summariesKey).Return(cached, nil)

		got, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKindGrid)
		require.NoError(t, err)
		assert.Equal(t, summaries, got)
		store.AssertNotCalled(t, "GetSummaries", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache failure falls back to store", func(t *testing.T) {
		store := &MockResultStore{}
		cache := &MockCacheRepository{}
		uc := usecase.NewResultsUseCase(store, cache, ttl, zap.NewNop())

		cache.On("Get", ctx, summariesKey).Return(nil, stderrors.New("connection refused"))
		store.On("GetSummaries", ctx, "run-1", "acacia", domain.UnitKindGrid).Return(summaries, nil)
		cache.On("Set", ctx, summariesKey, mock.Anything, ttl).Return(stderrors.New("connection refused"))

		got, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKindGrid)
		require.NoError(t, err)
		assert.Equal(t, summaries, got)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		store := &MockResultStore{}
		cache := &MockCacheRepository{}
		uc := usecase.NewResultsUseCase(store, cache, ttl, zap.NewNop())

		cache.On("Get", ctx, summariesKey).Return(nil, nil)
		store.On("GetSummaries", ctx, "run-1", "acacia", domain.UnitKindGrid).Return(nil, pkgerrors.ErrSummaryNotFound)

		_, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKindGrid)
		assert.ErrorIs(t, err, pkgerrors.ErrSummaryNotFound)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("works without cache", func(t *testing.T) {
		store := &MockResultStore{}
		uc := usecase.NewResultsUseCase(store, nil, ttl, zap.NewNop())

		store.On("GetSummaries", ctx, "run-1", "acacia", domain.UnitKindGrid).Return(summaries, nil)

		got, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKindGrid)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestResultsUseCase_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewResultsUseCase(&MockResultStore{}, nil, time.Hour, zap.NewNop())

	_, err := uc.GetSummaries(ctx, "run-1", "acacia", domain.UnitKind("Not A Kind"))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidRequest)

	_, err = uc.GetSummaries(ctx, "", "acacia", domain.UnitKindGrid)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidRequest)

	_, err = uc.GetAccuracy(ctx, "run-1", "bad name!")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidRequest)

	_, err = uc.GetRun(ctx, "")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidRequest)
}

func TestResultsUseCase_ListRunsClampsLimit(t *testing.T) {
	ctx := context.Background()
	store := &MockResultStore{}
	uc := usecase.NewResultsUseCase(store, nil, time.Hour, zap.NewNop())

	store.On("ListRuns", ctx, 20).Return([]domain.RunResult{}, nil).Once()
	store.On("ListRuns", ctx, 200).Return([]domain.RunResult{}, nil).Once()

	_, err := uc.ListRuns(ctx, 0)
	require.NoError(t, err)
	_, err = uc.ListRuns(ctx, 10000)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestResultsUseCase_GetAccuracySkipsCachingEmpty(t *testing.T) {
	ctx := context.Background()
	store := &MockResultStore{}
	cache := &MockCacheRepository{}
	uc := usecase.NewResultsUseCase(store, cache, time.Hour, zap.NewNop())

	cache.On("Get", ctx, "rescale:accuracy:run-1:acacia").Return(nil, nil)
	store.On("GetAccuracy", ctx, "run-1", "acacia").Return([]domain.AccuracyReport{}, nil)

	reports, err := uc.GetAccuracy(ctx, "run-1", "acacia")
	require.NoError(t, err)
	assert.Empty(t, reports)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
