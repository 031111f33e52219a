// Package aggregate сводит назначенные наблюдения в агрегаты по единицам
// и считает метрики точности на уровне единиц.
package aggregate

import (
	"sort"

	"github.com/landscape-rescale/internal/domain"
	"github.com/landscape-rescale/internal/pkg/errors"
)

type partition struct {
	observed  []float64
	predicted []float64
}

// Summarize группирует наблюдения по единицам и отбрасывает единицы с n < minimumCount.
// Результат отсортирован по идентификатору единицы и не зависит от порядка входа.
func Summarize(
	kind domain.UnitKind,
	observations []domain.Observation,
	assignments []domain.Assignment,
	minimumCount int,
) ([]domain.UnitSummary, error) {
	if minimumCount < 1 {
		return nil, errors.Wrapf(errors.ErrInvalidMinimumCount, "%s: minimum_count = %d", kind, minimumCount)
	}

	partitions := make(map[string]*partition)
	for _, a := range assignments {
		if a.Index < 0 || a.Index >= len(observations) {
			continue
		}
		p, ok := partitions[a.UnitID]
		if !ok {
			p = &partition{}
			partitions[a.UnitID] = p
		}
		obs := observations[a.Index]
		p.observed = append(p.observed, obs.Observed)
		p.predicted = append(p.predicted, obs.Predicted)
	}

	summaries := make([]domain.UnitSummary, 0, len(partitions))
	for unitID, p := range partitions {
		n := len(p.observed)
		if n == 0 || n < minimumCount {
			continue
		}
		summaries = append(summaries, domain.UnitSummary{
			Kind:          kind,
			UnitID:        unitID,
			N:             n,
			MeanObserved:  stableMean(p.observed),
			MeanPredicted: stableMean(p.predicted),
		})
	}

	SortSummaries(summaries)
	return summaries, nil
}

// Filtered возвращает число единиц, получивших наблюдения, но не прошедших порог
func Filtered(assignments []domain.Assignment, emitted int) int {
	seen := make(map[string]struct{})
	for _, a := range assignments {
		seen[a.UnitID] = struct{}{}
	}
	return len(seen) - emitted
}

// SortSummaries сортирует по естественному порядку идентификаторов
func SortSummaries(summaries []domain.UnitSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return domain.CompareUnitIDs(summaries[i].UnitID, summaries[j].UnitID) < 0
	})
}

// stableMean - скользящее среднее по отсортированным значениям, ограниченное [min, max].
// Сортировка делает результат независимым от порядка наблюдений.
func stableMean(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := 0.0
	for i, v := range sorted {
		mean += (v - mean) / float64(i+1)
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	switch {
	case mean < lo:
		return lo
	case mean > hi:
		return hi
	}
	return mean
}
