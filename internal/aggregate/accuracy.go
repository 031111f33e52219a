package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/landscape-rescale/internal/domain"
)

// Accuracy считает R², RMSE, смещение и MAE между средними по единицам.
// Средние предсказанные значения рассматриваются как оценка средних наблюденных.
// При числе единиц меньше двух метрики не определены.
func Accuracy(indicator string, kind domain.UnitKind, summaries []domain.UnitSummary) domain.AccuracyReport {
	report := domain.AccuracyReport{
		Indicator: indicator,
		Kind:      kind,
		Units:     len(summaries),
	}
	for _, s := range summaries {
		report.Observations += s.N
	}

	if len(summaries) < 2 {
		return report
	}

	observed := make([]float64, len(summaries))
	predicted := make([]float64, len(summaries))
	for i, s := range summaries {
		observed[i] = s.MeanObserved
		predicted[i] = s.MeanPredicted
	}

	var sqErr, absErr, bias float64
	for i := range observed {
		d := predicted[i] - observed[i]
		sqErr += d * d
		absErr += math.Abs(d)
		bias += d
	}
	n := float64(len(observed))

	rmse := math.Sqrt(sqErr / n)
	mae := absErr / n
	bias /= n
	report.RMSE = &rmse
	report.MAE = &mae
	report.Bias = &bias

	// R² не определен, если наблюденные средние не варьируют
	if stat.Variance(observed, nil) > 0 {
		r2 := stat.RSquaredFrom(predicted, observed, nil)
		report.R2 = &r2
	}

	return report
}
