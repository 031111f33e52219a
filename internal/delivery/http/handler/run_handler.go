package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/errors"
	"github.com/landscape-rescale/internal/pkg/utils"
	"github.com/landscape-rescale/internal/usecase"
	"github.com/landscape-rescale/internal/usecase/dto"
)

// RunHandler - постановка прогонов в очередь и чтение их результатов
type RunHandler struct {
	requestUC *usecase.RunRequestUseCase
	resultsUC *usecase.ResultsUseCase
	logger    *zap.Logger
}

func NewRunHandler(
	requestUC *usecase.RunRequestUseCase,
	resultsUC *usecase.ResultsUseCase,
	logger *zap.Logger,
) *RunHandler {
	return &RunHandler{
		requestUC: requestUC,
		resultsUC: resultsUC,
		logger:    logger,
	}
}

// SubmitRun godoc
// @Summary Queue a rescale run
// @Description Публикует запрос на пересчет индикаторов в stream:rescale:request
// @Tags Runs
// @Accept json
// @Produce json
// @Param request body dto.SubmitRunRequest true "Indicators to rescale"
// @Success 202 {object} utils.SuccessResponse{data=dto.SubmitRunResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 503 {object} utils.ErrorResponse
// @Router /api/v1/runs [post]
func (h *RunHandler) SubmitRun(c *fiber.Ctx) error {
	var req dto.SubmitRunRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("Invalid run request body", zap.Error(err))
		return utils.SendError(c, errors.ErrInvalidRequest.WithDetails(map[string]interface{}{
			"body": "invalid JSON",
		}))
	}

	resp, err := h.requestUC.Submit(c.UserContext(), req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendAccepted(c, resp)
}

// ListRuns godoc
// @Summary List recent runs
// @Tags Runs
// @Produce json
// @Param limit query int false "Max runs (default 20, max 200)"
// @Success 200 {object} utils.SuccessResponse{data=dto.RunListResponse}
// @Failure 500 {object} utils.ErrorResponse
// @Router /api/v1/runs [get]
func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	runs, err := h.resultsUC.ListRuns(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		return utils.SendError(c, err)
	}

	return utils.SendList(c, dto.RunListResponse{Runs: runs}, len(runs), limit)
}

// GetRun godoc
// @Summary Get run with per-indicator results
// @Tags Runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} utils.SuccessResponse{data=domain.RunResult}
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/runs/{run_id} [get]
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.resultsUC.GetRun(c.UserContext(), c.Params("run_id"))
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, run, nil)
}

// GetSummaries godoc
// @Summary Get unit summary table
// @Description Агрегаты по единицам для (indicator, kind), в естественном порядке идентификаторов
// @Tags Results
// @Produce json
// @Param run_id path string true "Run ID"
// @Param indicator path string true "Indicator"
// @Param kind path string true "Unit kind" example(grid)
// @Success 200 {object} utils.SuccessResponse{data=dto.SummaryTableResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/runs/{run_id}/indicators/{indicator}/summaries/{kind} [get]
func (h *RunHandler) GetSummaries(c *fiber.Ctx) error {
	runID := c.Params("run_id")
	indicator := c.Params("indicator")
	kind := domain.UnitKind(c.Params("kind"))

	units, err := h.resultsUC.GetSummaries(c.UserContext(), runID, indicator, kind)
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, dto.SummaryTableResponse{
		RunID:     runID,
		Indicator: indicator,
		Kind:      kind,
		Units:     units,
	}, &utils.Meta{Total: len(units)})
}

// GetAccuracy godoc
// @Summary Get accuracy reports
// @Tags Results
// @Produce json
// @Param run_id path string true "Run ID"
// @Param indicator path string true "Indicator"
// @Success 200 {object} utils.SuccessResponse{data=dto.AccuracyResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/runs/{run_id}/indicators/{indicator}/accuracy [get]
func (h *RunHandler) GetAccuracy(c *fiber.Ctx) error {
	runID := c.Params("run_id")
	indicator := c.Params("indicator")

	reports, err := h.resultsUC.GetAccuracy(c.UserContext(), runID, indicator)
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, dto.AccuracyResponse{
		RunID:     runID,
		Indicator: indicator,
		Reports:   reports,
	}, nil)
}
