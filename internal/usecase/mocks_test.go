package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/landscape-rescale/internal/domain"
)

// MockObservationRepository - мок источника наблюдений
type MockObservationRepository struct {
	mock.Mock
}

func (m *MockObservationRepository) Load(ctx context.Context, indicator string) (*domain.ObservationSet, error) {
	args := m.Called(ctx, indicator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ObservationSet), args.Error(1)
}

// MockUnitLayerRepository - мок загрузчика слоев
type MockUnitLayerRepository struct {
	mock.Mock
}

func (m *MockUnitLayerRepository) Load(ctx context.Context, kind domain.UnitKind, source domain.LayerSource) (*domain.UnitLayer, error) {
	args := m.Called(ctx, kind, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnitLayer), args.Error(1)
}

// MockResultStore - мок каталога прогонов
type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) WriteSummaries(ctx context.Context, runID, indicator string, kind domain.UnitKind, summaries []domain.UnitSummary) (string, error) {
	args := m.Called(ctx, runID, indicator, kind, summaries)
	return args.String(0), args.Error(1)
}

func (m *MockResultStore) WriteAccuracy(ctx context.Context, runID, indicator string, report domain.AccuracyReport) error {
	args := m.Called(ctx, runID, indicator, report)
	return args.Error(0)
}

func (m *MockResultStore) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	args := m.Called(ctx, runID, startedAt)
	return args.Error(0)
}

func (m *MockResultStore) FinishIndicator(ctx context.Context, runID string, result domain.IndicatorResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *MockResultStore) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time) error {
	args := m.Called(ctx, runID, status, finishedAt)
	return args.Error(0)
}

func (m *MockResultStore) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RunResult), args.Error(1)
}

func (m *MockResultStore) GetRun(ctx context.Context, runID string) (*domain.RunResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunResult), args.Error(1)
}

func (m *MockResultStore) GetSummaries(ctx context.Context, runID, indicator string, kind domain.UnitKind) ([]domain.UnitSummary, error) {
	args := m.Called(ctx, runID, indicator, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UnitSummary), args.Error(1)
}

func (m *MockResultStore) GetAccuracy(ctx context.Context, runID, indicator string) ([]domain.AccuracyReport, error) {
	args := m.Called(ctx, runID, indicator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccuracyReport), args.Error(1)
}

// MockCacheRepository - мок кеша
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// memoryWriter - потокобезопасный приемник таблиц в памяти
type memoryWriter struct {
	mu        sync.Mutex
	summaries map[string][]domain.UnitSummary
	accuracy  map[string]domain.AccuracyReport
	err       error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{
		summaries: make(map[string][]domain.UnitSummary),
		accuracy:  make(map[string]domain.AccuracyReport),
	}
}

func (w *memoryWriter) WriteSummaries(_ context.Context, _, indicator string, kind domain.UnitKind, summaries []domain.UnitSummary) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	key := indicator + "_" + kind.String()
	w.summaries[key] = summaries
	return "mem:" + key, nil
}

func (w *memoryWriter) WriteAccuracy(_ context.Context, _, indicator string, report domain.AccuracyReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accuracy[indicator+"_"+report.Kind.String()] = report
	return nil
}

func (w *memoryWriter) table(indicator string, kind domain.UnitKind) ([]domain.UnitSummary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.summaries[indicator+"_"+kind.String()]
	return s, ok
}

// MockStreamRepository - мок Redis Streams
type MockStreamRepository struct {
	mock.Mock
}

func (m *MockStreamRepository) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	args := m.Called(ctx, stream, group)
	return args.Error(0)
}

func (m *MockStreamRepository) ConsumeBatch(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]domain.StreamMessage, error) {
	args := m.Called(ctx, stream, group, consumer, count, block)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StreamMessage), args.Error(1)
}

func (m *MockStreamRepository) ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]domain.StreamMessage, error) {
	args := m.Called(ctx, stream, group, consumer, minIdle, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StreamMessage), args.Error(1)
}

func (m *MockStreamRepository) AckMessages(ctx context.Context, stream, group string, messageIDs ...string) error {
	args := m.Called(ctx, stream, group, messageIDs)
	return args.Error(0)
}

func (m *MockStreamRepository) PublishToStream(ctx context.Context, stream string, data interface{}) error {
	args := m.Called(ctx, stream, data)
	return args.Error(0)
}
