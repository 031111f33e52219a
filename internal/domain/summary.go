package domain

import "time"

// UnitSummary - агрегат по одной единице, прошедшей фильтр по минимальному числу наблюдений
type UnitSummary struct {
	Kind          UnitKind `json:"kind" db:"kind"`
	UnitID        string   `json:"unit_id" db:"unit_id"`
	N             int      `json:"n" db:"n"`
	MeanObserved  float64  `json:"mean_observed" db:"mean_observed"`
	MeanPredicted float64  `json:"mean_predicted" db:"mean_predicted"`
}

// Assignment - связь наблюдения (индекс во входном наборе) с единицей агрегации
type Assignment struct {
	Index  int
	UnitID string
}

// AccuracyReport - метрики точности на уровне единиц одного типа.
// Метрики равны nil, если единиц меньше двух.
type AccuracyReport struct {
	Indicator    string   `json:"indicator" db:"indicator"`
	Kind         UnitKind `json:"kind" db:"kind"`
	Units        int      `json:"units" db:"units"`
	Observations int      `json:"observations" db:"observations"`
	R2           *float64 `json:"r2,omitempty" db:"r2"`
	RMSE         *float64 `json:"rmse,omitempty" db:"rmse"`
	Bias         *float64 `json:"bias,omitempty" db:"bias"`
	MAE          *float64 `json:"mae,omitempty" db:"mae"`
}

// KindOutcome - результат обработки одного типа единиц для индикатора
type KindOutcome struct {
	Kind       UnitKind `json:"kind"`
	Assigned   int      `json:"assigned"`
	Unassigned int      `json:"unassigned"`
	Units      int      `json:"units"`
	Filtered   int      `json:"filtered"`
	Artifact   string   `json:"artifact,omitempty"`
}

// IndicatorResult - результат прогона одного индикатора
type IndicatorResult struct {
	Indicator    string        `json:"indicator" db:"indicator"`
	Observations int           `json:"observations" db:"observations"`
	Kinds        []KindOutcome `json:"kinds"`
	Error        string        `json:"error,omitempty" db:"error"`
	Duration     time.Duration `json:"duration" db:"-"`
}

// Failed проверяет, завершился ли индикатор ошибкой
func (r IndicatorResult) Failed() bool {
	return r.Error != ""
}

// Run статусы
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// RunResult - результат пакетного прогона
type RunResult struct {
	RunID      string            `json:"run_id" db:"run_id"`
	Status     string            `json:"status" db:"status"`
	StartedAt  time.Time         `json:"started_at" db:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
	Indicators []IndicatorResult `json:"indicators,omitempty" db:"-"`
}

// FailedCount возвращает число упавших индикаторов
func (r *RunResult) FailedCount() int {
	n := 0
	for _, ind := range r.Indicators {
		if ind.Failed() {
			n++
		}
	}
	return n
}

// ResolveStatus вычисляет итоговый статус прогона по результатам индикаторов
func (r *RunResult) ResolveStatus() string {
	failed := r.FailedCount()
	switch {
	case len(r.Indicators) == 0:
		return RunStatusDone
	case failed == 0:
		return RunStatusDone
	case failed == len(r.Indicators):
		return RunStatusFailed
	}
	return RunStatusPartial
}
