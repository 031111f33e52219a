package rescale_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/worker/rescale"
)

// MockStreamRepository - мок StreamRepository
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

// fakeRunner отдает заранее заданные результаты через onDone
type fakeRunner struct {
	calls   []runCall
	results []domain.IndicatorResult
}

type runCall struct {
	runID      string
	indicators []string
	workers    int
}

func (r *fakeRunner) RunBatch(_ context.Context, runID string, indicators []string, workers int, onDone func(domain.IndicatorResult)) *domain.RunResult {
	r.calls = append(r.calls, runCall{runID: runID, indicators: indicators, workers: workers})
	run := &domain.RunResult{RunID: runID}
	for _, res := range r.results {
		if onDone != nil {
			onDone(res)
		}
		run.Indicators = append(run.Indicators, res)
	}
	run.Status = run.ResolveStatus()
	return run
}

func requestMessage(t *testing.T, id string, event domain.RescaleRequestEvent) domain.StreamMessage {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return domain.StreamMessage{ID: id, Data: string(data)}
}

func newWorker(streams *MockStreamRepository, runner *fakeRunner) *rescale.RescaleWorker {
	return rescale.NewRescaleWorker(streams, runner, rescale.Config{
		ConsumerGroup: "rescale-workers",
		BatchSize:     5,
		ReadTimeout:   time.Second,
		Concurrency:   3,
	}, zap.NewNop())
}

func TestRescaleWorker_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	runner := &fakeRunner{results: []domain.IndicatorResult{
		{Indicator: "acacia", Observations: 60, Kinds: []domain.KindOutcome{{Kind: domain.UnitKindGrid, Units: 3}}},
		{Indicator: "broken", Error: "MISSING_COLUMN: Required observation column is missing"},
	}}
	w := newWorker(streams, runner)

	runID := uuid.New()
	msg := requestMessage(t, "1-0", domain.RescaleRequestEvent{RunID: runID, Indicators: []string{"acacia", "broken"}})

	streams.On("ConsumeBatch", ctx, domain.StreamRescaleRequest, "rescale-workers", w.ConsumerName(), int64(5), time.Second).
		Return([]domain.StreamMessage{msg}, nil)
	streams.On("PublishToStream", ctx, domain.StreamRescaleDone, domain.RescaleDoneEvent{
		RunID: runID, Indicator: "acacia", Observations: 60,
		Kinds: []domain.KindOutcome{{Kind: domain.UnitKindGrid, Units: 3}},
	}).Return(nil).Once()
	streams.On("PublishToStream", ctx, domain.StreamRescaleDone, domain.RescaleDoneEvent{
		RunID: runID, Indicator: "broken", Error: "MISSING_COLUMN: Required observation column is missing",
	}).Return(nil).Once()
	streams.On("AckMessages", ctx, domain.StreamRescaleRequest, "rescale-workers", []string{"1-0"}).Return(nil).Once()

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, runID.String(), runner.calls[0].runID)
	assert.Equal(t, []string{"acacia", "broken"}, runner.calls[0].indicators)
	assert.Equal(t, 3, runner.calls[0].workers)
	streams.AssertExpectations(t)
}

func TestRescaleWorker_MalformedMessagesAreAckedAndSkipped(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	runner := &fakeRunner{}
	w := newWorker(streams, runner)

	messages := []domain.StreamMessage{
		{ID: "1-0", Data: "{not json"},
		requestMessage(t, "2-0", domain.RescaleRequestEvent{Indicators: []string{"acacia"}}),
		requestMessage(t, "3-0", domain.RescaleRequestEvent{RunID: uuid.New()}),
		requestMessage(t, "4-0", domain.RescaleRequestEvent{RunID: uuid.New(), Indicators: []string{"../x"}}),
	}

	streams.On("ConsumeBatch", ctx, domain.StreamRescaleRequest, "rescale-workers", mock.Anything, int64(5), time.Second).
		Return(messages, nil)
	for _, id := range []string{"1-0", "2-0", "3-0", "4-0"} {
		streams.On("AckMessages", ctx, domain.StreamRescaleRequest, "rescale-workers", []string{id}).Return(nil).Once()
	}

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, processed)
	assert.Empty(t, runner.calls)
	streams.AssertExpectations(t)
	streams.AssertNotCalled(t, "PublishToStream", mock.Anything, mock.Anything, mock.Anything)
}

func TestRescaleWorker_EmptyQueue(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	w := newWorker(streams, &fakeRunner{})

	streams.On("ConsumeBatch", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestRescaleWorker_StartStopsOnStop(t *testing.T) {
	streams := &MockStreamRepository{}
	w := newWorker(streams, &fakeRunner{})

	streams.On("CreateConsumerGroup", mock.Anything, domain.StreamRescaleRequest, "rescale-workers").Return(nil)
	streams.On("ConsumeBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.StreamMessage{}, nil).Maybe()

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.True(t, w.IsStopped())
}

func newClaimingWorker(streams *MockStreamRepository, runner *fakeRunner) *rescale.RescaleWorker {
	return rescale.NewRescaleWorker(streams, runner, rescale.Config{
		ConsumerGroup: "rescale-workers",
		BatchSize:     5,
		ReadTimeout:   time.Second,
		Concurrency:   3,
		ClaimIdle:     time.Minute,
	}, zap.NewNop())
}

// Запрос, который упавший consumer прочитал и не подтвердил, выполняется и подтверждается
func TestRescaleWorker_ClaimsStalePendingRequests(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	runner := &fakeRunner{results: []domain.IndicatorResult{{Indicator: "acacia", Observations: 10}}}
	w := newClaimingWorker(streams, runner)

	runID := uuid.New()
	msg := requestMessage(t, "7-0", domain.RescaleRequestEvent{RunID: runID, Indicators: []string{"acacia"}})

	streams.On("ClaimPending", ctx, domain.StreamRescaleRequest, "rescale-workers", w.ConsumerName(), time.Minute, int64(5)).
		Return([]domain.StreamMessage{msg}, nil).Once()
	streams.On("PublishToStream", ctx, domain.StreamRescaleDone, mock.Anything).Return(nil).Once()
	streams.On("AckMessages", ctx, domain.StreamRescaleRequest, "rescale-workers", []string{"7-0"}).Return(nil).Once()

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, runID.String(), runner.calls[0].runID)
	streams.AssertExpectations(t)
	// новые сообщения в этой пачке не читаются
	streams.AssertNotCalled(t, "ConsumeBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRescaleWorker_ReadsNewWhenNothingPending(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	w := newClaimingWorker(streams, &fakeRunner{})

	streams.On("ClaimPending", ctx, mock.Anything, mock.Anything, mock.Anything, time.Minute, int64(5)).Return(nil, nil).Once()
	streams.On("ConsumeBatch", ctx, domain.StreamRescaleRequest, "rescale-workers", w.ConsumerName(), int64(5), time.Second).
		Return(nil, nil).Once()

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
	streams.AssertExpectations(t)
}

func TestRescaleWorker_ClaimErrorFallsBackToNewMessages(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	runner := &fakeRunner{}
	w := newClaimingWorker(streams, runner)

	msg := requestMessage(t, "9-0", domain.RescaleRequestEvent{RunID: uuid.New(), Indicators: []string{"acacia"}})

	streams.On("ClaimPending", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("NOSCRIPT")).Once()
	streams.On("ConsumeBatch", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.StreamMessage{msg}, nil).Once()
	streams.On("AckMessages", ctx, domain.StreamRescaleRequest, "rescale-workers", []string{"9-0"}).Return(nil).Once()

	processed, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Len(t, runner.calls, 1)
	streams.AssertExpectations(t)
}

func TestRescaleWorker_ClaimDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	streams := &MockStreamRepository{}
	w := newWorker(streams, &fakeRunner{})

	streams.On("ConsumeBatch", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	_, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	streams.AssertNotCalled(t, "ClaimPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
