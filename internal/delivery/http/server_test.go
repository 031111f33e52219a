package http_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/config"
	delivery "github.com/landscape-rescale/internal/delivery/http"
	"github.com/landscape-rescale/internal/delivery/http/handler"
	"github.com/landscape-rescale/internal/domain"
	pkgerrors "github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/metrics"
	"github.com/landscape-rescale/internal/usecase"
)

type MockStreamRepository struct {
	mock.Mock
}

func (m *MockStreamRepository) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	return m.Called(ctx, stream, group).Error(0)
}

func (m *MockStreamRepository) ConsumeBatch(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]domain.StreamMessage, error) {
	args := m.Called(ctx, stream, group, consumer, count, block)
	return nil, args.Error(1)
}

func (m *MockStreamRepository) ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]domain.StreamMessage, error) {
	args := m.Called(ctx, stream, group, consumer, minIdle, count)
	return nil, args.Error(1)
}

func (m *MockStreamRepository) AckMessages(ctx context.Context, stream, group string, messageIDs ...string) error {
	return m.Called(ctx, stream, group, messageIDs).Error(0)
}

func (m *MockStreamRepository) PublishToStream(ctx context.Context, stream string, data interface{}) error {
	return m.Called(ctx, stream, data).Error(0)
}

// stubStore - каталог прогонов в памяти с фиксированным содержимым
type stubStore struct {
	runs      map[string]*domain.RunResult
	summaries map[string][]domain.UnitSummary
}

func (s *stubStore) WriteSummaries(context.Context, string, string, domain.UnitKind, []domain.UnitSummary) (string, error) {
	return "", nil
}

func (s *stubStore) WriteAccuracy(context.Context, string, string, domain.AccuracyReport) error {
	return nil
}

func (s *stubStore) CreateRun(context.Context, string, time.Time) error { return nil }

func (s *stubStore) FinishIndicator(context.Context, string, domain.IndicatorResult) error {
	return nil
}

func (s *stubStore) FinishRun(context.Context, string, string, time.Time) error { return nil }

func (s *stubStore) ListRuns(_ context.Context, limit int) ([]domain.RunResult, error) {
	out := []domain.RunResult{}
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (s *stubStore) GetRun(_ context.Context, runID string) (*domain.RunResult, error) {
	r, ok := s.runs[runID]
	if !ok {
		return nil, pkgerrors.ErrRunNotFound
	}
	return r, nil
}

func (s *stubStore) GetSummaries(_ context.Context, runID, indicator string, kind domain.UnitKind) ([]domain.UnitSummary, error) {
	t, ok := s.summaries[runID+"/"+indicator+"/"+kind.String()]
	if !ok {
		return nil, pkgerrors.ErrSummaryNotFound
	}
	return t, nil
}

func (s *stubStore) GetAccuracy(context.Context, string, string) ([]domain.AccuracyReport, error) {
	return []domain.AccuracyReport{}, nil
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, streams *MockStreamRepository, checks map[string]handler.HealthChecker) *delivery.Server {
	t.Helper()
	logger := zap.NewNop()

	store := &stubStore{
		runs: map[string]*domain.RunResult{
			"run-1": {RunID: "run-1", Status: domain.RunStatusDone, StartedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		},
		summaries: map[string][]domain.UnitSummary{
			"run-1/acacia/grid": {
				{Kind: domain.UnitKindGrid, UnitID: "2", N: 5, MeanObserved: 14, MeanPredicted: 13.8},
				{Kind: domain.UnitKindGrid, UnitID: "10", N: 6, MeanObserved: 3, MeanPredicted: 4},
			},
		},
	}

	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, CORSOrigins: "*"}}
	collector := metrics.NewCollector("rescale_test")

	runHandler := handler.NewRunHandler(
		usecase.NewRunRequestUseCase(streams, logger),
		usecase.NewResultsUseCase(store, nil, time.Hour, logger),
		logger,
	)
	return delivery.NewServer(cfg, collector, logger, handler.NewHealthHandler(checks, logger), runHandler)
}

func doRequest(t *testing.T, s *delivery.Server, method, target, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var payload map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp, payload
}

func TestServer_Health(t *testing.T) {
	ok := healthFunc(func(context.Context) error { return nil })
	down := healthFunc(func(context.Context) error { return stderrors.New("refused") })

	s := newTestServer(t, &MockStreamRepository{}, map[string]handler.HealthChecker{"store": ok})
	resp, body := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	s = newTestServer(t, &MockStreamRepository{}, map[string]handler.HealthChecker{"store": ok, "redis": down})
	resp, body = doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "unavailable", deps["redis"])
	assert.Equal(t, "ok", deps["store"])
}

func TestServer_SubmitRun(t *testing.T) {
	streams := &MockStreamRepository{}
	streams.On("PublishToStream", mock.Anything, domain.StreamRescaleRequest, mock.AnythingOfType("domain.RescaleRequestEvent")).Return(nil).Once()
	s := newTestServer(t, streams, nil)

	resp, body := doRequest(t, s, http.MethodPost, "/api/v1/runs", `{"indicators":["acacia","triodia"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["run_id"])
	assert.Equal(t, "queued", data["status"])
	assert.EqualValues(t, 2, data["indicators"])
	streams.AssertExpectations(t)
}

func TestServer_SubmitRunRejectsInvalidRequests(t *testing.T) {
	s := newTestServer(t, &MockStreamRepository{}, nil)

	for _, body := range []string{`{"indicators":[]}`, `{"indicators":["ok","bad name"]}`, `not json`} {
		resp, payload := doRequest(t, s, http.MethodPost, "/api/v1/runs", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		errBody := payload["error"].(map[string]interface{})
		assert.Equal(t, "INVALID_REQUEST", errBody["code"], body)
	}
}

func TestServer_ReadResults(t *testing.T) {
	s := newTestServer(t, &MockStreamRepository{}, nil)

	resp, body := doRequest(t, s, http.MethodGet, "/api/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["data"].(map[string]interface{})["status"])

	resp, body = doRequest(t, s, http.MethodGet, "/api/v1/runs/run-1/indicators/acacia/summaries/grid", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	units := body["data"].(map[string]interface{})["units"].([]interface{})
	require.Len(t, units, 2)
	assert.Equal(t, "2", units[0].(map[string]interface{})["unit_id"])

	resp, body = doRequest(t, s, http.MethodGet, "/api/v1/runs/run-1/indicators/acacia/summaries/region", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SUMMARY_NOT_FOUND", body["error"].(map[string]interface{})["code"])

	resp, body = doRequest(t, s, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RUN_NOT_FOUND", body["error"].(map[string]interface{})["code"])

	resp, _ = doRequest(t, s, http.MethodGet, "/api/v1/runs?limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, &MockStreamRepository{}, nil)

	doRequest(t, s, http.MethodGet, "/api/v1/runs/run-1", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "rescale_test_api_requests_total")

	resp, body := doRequest(t, s, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "HTTP_ERROR", body["error"].(map[string]interface{})["code"])
}
