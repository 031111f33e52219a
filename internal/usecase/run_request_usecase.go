package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/domain/repository"
	"github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/validator"
	"github.com/landscape-rescale/internal/usecase/dto"
)

// RunStatusQueued - прогон опубликован, но воркер его еще не взял
const RunStatusQueued = "queued"

// RunRequestUseCase ставит прогоны в очередь stream:rescale:request
type RunRequestUseCase struct {
	streamRepo repository.StreamRepository
	logger     *zap.Logger
}

func NewRunRequestUseCase(streamRepo repository.StreamRepository, logger *zap.Logger) *RunRequestUseCase {
	return &RunRequestUseCase{
		streamRepo: streamRepo,
		logger:     logger,
	}
}

func (uc *RunRequestUseCase) Submit(ctx context.Context, req dto.SubmitRunRequest) (*dto.SubmitRunResponse, error) {
	if err := validator.Validate(&req); err != nil {
		return nil, errors.ErrInvalidRequest.WithDetails(map[string]interface{}{
			"indicators": err.Error(),
		})
	}

	event := domain.RescaleRequestEvent{
		RunID:      uuid.New(),
		Indicators: dedupe(req.Indicators),
	}
	if err := uc.streamRepo.PublishToStream(ctx, domain.StreamRescaleRequest, event); err != nil {
		uc.logger.Error("Failed to publish rescale request", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrStreamError)
	}

	uc.logger.Info("Rescale run queued",
		zap.String("run_id", event.RunID.String()),
		zap.Int("indicators", len(event.Indicators)))

	return &dto.SubmitRunResponse{
		RunID:      event.RunID.String(),
		Status:     RunStatusQueued,
		Indicators: len(event.Indicators),
	}, nil
}
