// Package rescale - воркер, выполняющий прогоны пересчета по событиям из Redis Streams
package rescale

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/validator"
	"github.com/landscape-rescale/internal/worker"
)

const (
	errorPause      = time.Second
	emptyQueueSleep = 100 * time.Millisecond
)

// BatchRunner выполняет пакетный прогон индикаторов
type BatchRunner interface {
	RunBatch(
		ctx context.Context,
		runID string,
		indicators []string,
		workers int,
		onDone func(domain.IndicatorResult),
	) *domain.RunResult
}

// Config - параметры чтения стрима и параллелизма прогона
type Config struct {
	ConsumerGroup string
	BatchSize     int64
	ReadTimeout   time.Duration
	Concurrency   int
	// ClaimIdle - через сколько неподтвержденный запрос забирается у другого consumer; 0 отключает
	ClaimIdle time.Duration
}

// RescaleWorker читает stream:rescale:request и публикует по событию на индикатор
// в stream:rescale:done
type RescaleWorker struct {
	*worker.BaseWorker
	streamRepo repository.StreamRepository
	runner     BatchRunner
	cfg        Config
}

func NewRescaleWorker(
	streamRepo repository.StreamRepository,
	runner BatchRunner,
	cfg Config,
	logger *zap.Logger,
) *RescaleWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &RescaleWorker{
		BaseWorker: worker.NewBaseWorker("rescale", cfg.ConsumerGroup, logger),
		streamRepo: streamRepo,
		runner:     runner,
		cfg:        cfg,
	}
}

func (w *RescaleWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting rescale worker",
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.ConsumerName()),
		zap.Int64("batch_size", w.cfg.BatchSize),
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Duration("claim_idle", w.cfg.ClaimIdle))

	if err := w.streamRepo.CreateConsumerGroup(ctx, domain.StreamRescaleRequest, w.ConsumerGroup()); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil
		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()
		default:
		}

		processed, err := w.ProcessBatch(ctx)
		if err != nil {
			logger.Error("Failed to process batch", zap.Error(err))
			sleep(ctx, errorPause)
			continue
		}
		if processed == 0 {
			sleep(ctx, emptyQueueSleep)
		}
	}
}

// ProcessBatch читает пачку запросов и выполняет их по очереди.
// Сначала забираются зависшие в PEL запросы, затем читаются новые.
// Возвращает число прочитанных сообщений.
func (w *RescaleWorker) ProcessBatch(ctx context.Context) (int, error) {
	messages := w.claimPending(ctx)
	if len(messages) == 0 {
		var err error
		messages, err = w.streamRepo.ConsumeBatch(
			ctx,
			domain.StreamRescaleRequest,
			w.ConsumerGroup(),
			w.ConsumerName(),
			w.cfg.BatchSize,
			w.cfg.ReadTimeout,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to consume batch: %w", err)
		}
	}
	if len(messages) == 0 {
		return 0, nil
	}

	for _, msg := range messages {
		event, err := parseMessage(msg)
		if err != nil {
			w.Logger().Warn("Malformed rescale request, skipping",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			// битое сообщение подтверждаем, чтобы оно не застревало в PEL
			w.ack(ctx, msg.ID)
			continue
		}

		w.handle(ctx, event)
		w.ack(ctx, msg.ID)
	}

	return len(messages), nil
}

func (w *RescaleWorker) handle(ctx context.Context, event *domain.RescaleRequestEvent) {
	runID := event.RunID.String()
	logger := w.Logger().With(zap.String("run_id", runID))
	logger.Info("Rescale request received", zap.Int("indicators", len(event.Indicators)))

	run := w.runner.RunBatch(ctx, runID, event.Indicators, w.cfg.Concurrency, func(result domain.IndicatorResult) {
		done := domain.RescaleDoneEvent{
			RunID:        event.RunID,
			Indicator:    result.Indicator,
			Observations: result.Observations,
			Kinds:        result.Kinds,
			Error:        result.Error,
		}
		if err := w.streamRepo.PublishToStream(ctx, domain.StreamRescaleDone, done); err != nil {
			logger.Error("Failed to publish done event",
				zap.String("indicator", result.Indicator),
				zap.Error(err))
		}
	})

	logger.Info("Rescale request processed",
		zap.String("status", run.Status),
		zap.Int("failed", run.FailedCount()))
}

// claimPending - ошибка не мешает читать новые сообщения
func (w *RescaleWorker) claimPending(ctx context.Context) []domain.StreamMessage {
	if w.cfg.ClaimIdle <= 0 {
		return nil
	}
	messages, err := w.streamRepo.ClaimPending(
		ctx,
		domain.StreamRescaleRequest,
		w.ConsumerGroup(),
		w.ConsumerName(),
		w.cfg.ClaimIdle,
		w.cfg.BatchSize,
	)
	if err != nil {
		w.Logger().Warn("Failed to claim pending requests", zap.Error(err))
		return nil
	}
	return messages
}

func (w *RescaleWorker) ack(ctx context.Context, id string) {
	if err := w.streamRepo.AckMessages(ctx, domain.StreamRescaleRequest, w.ConsumerGroup(), id); err != nil {
		// сообщение остается в PEL: его заберет claimPending после ClaimIdle,
		// а без ClaimIdle только XCLAIM вручную
		w.Logger().Error("Failed to ack message", zap.String("message_id", id), zap.Error(err))
	}
}

func parseMessage(msg domain.StreamMessage) (*domain.RescaleRequestEvent, error) {
	var event domain.RescaleRequestEvent
	if err := json.Unmarshal([]byte(msg.Data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.RunID == uuid.Nil {
		return nil, fmt.Errorf("run_id is required")
	}
	if err := validator.Validate(&event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &event, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
