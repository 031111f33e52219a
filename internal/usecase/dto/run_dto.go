package dto

import "github.com/landscape-rescale/internal/domain"

// SubmitRunRequest - запрос на пересчет набора индикаторов
type SubmitRunRequest struct {
	Indicators []string `json:"indicators" validate:"required,min=1,max=500,dive,required,indicator" example:"acacia_aneura,triodia_spp"`
}

// SubmitRunResponse - идентификатор поставленного в очередь прогона
type SubmitRunResponse struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status" example:"queued"`
	Indicators int    `json:"indicators"`
}

// RunListResponse - последние прогоны
type RunListResponse struct {
	Runs []domain.RunResult `json:"runs"`
}

// SummaryTableResponse - таблица агрегатов (indicator, kind) прогона
type SummaryTableResponse struct {
	RunID     string               `json:"run_id"`
	Indicator string               `json:"indicator"`
	Kind      domain.UnitKind      `json:"kind"`
	Units     []domain.UnitSummary `json:"units"`
}

// AccuracyResponse - отчеты точности индикатора по типам единиц
type AccuracyResponse struct {
	RunID     string                  `json:"run_id"`
	Indicator string                  `json:"indicator"`
	Reports   []domain.AccuracyReport `json:"reports"`
}
