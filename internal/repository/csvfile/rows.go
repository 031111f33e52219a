package csvfile

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/landscape-rescale/internal/domain"
)

// observationRow - строка наблюдений после переименования колонок.
// Поля строковые: пустые и нечисловые значения разбираются и учитываются отдельно.
type observationRow struct {
	SiteVisitID string `csv:"site_visit_id"`
	X           string `csv:"x"`
	Y           string `csv:"y"`
	Observed    string `csv:"observed_value"`
	Predicted   string `csv:"predicted_value"`
	VisitDate   string `csv:"visit_date"`
	ProjectCode string `csv:"project_code"`
}

// summaryRow - строка выходной таблицы unit_id,n,mean_observed,mean_predicted
type summaryRow struct {
	UnitID        string  `csv:"unit_id"`
	N             int     `csv:"n"`
	MeanObserved  float64 `csv:"mean_observed"`
	MeanPredicted float64 `csv:"mean_predicted"`
}

func toSummaryRows(summaries []domain.UnitSummary) []*summaryRow {
	rows := make([]*summaryRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, &summaryRow{
			UnitID:        s.UnitID,
			N:             s.N,
			MeanObserved:  s.MeanObserved,
			MeanPredicted: s.MeanPredicted,
		})
	}
	return rows
}

// accuracyRow - строка отчета точности; пустые метрики означают "не определено"
type accuracyRow struct {
	RunID        string `csv:"run_id"`
	Kind         string `csv:"kind"`
	Units        int    `csv:"units"`
	Observations int    `csv:"observations"`
	R2           string `csv:"r2"`
	RMSE         string `csv:"rmse"`
	Bias         string `csv:"bias"`
	MAE          string `csv:"mae"`
}

func toAccuracyRow(runID string, r domain.AccuracyReport) *accuracyRow {
	return &accuracyRow{
		RunID:        runID,
		Kind:         r.Kind.String(),
		Units:        r.Units,
		Observations: r.Observations,
		R2:           formatMetric(r.R2),
		RMSE:         formatMetric(r.RMSE),
		Bias:         formatMetric(r.Bias),
		MAE:          formatMetric(r.MAE),
	}
}

func formatMetric(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

const utf8BOM = "\ufeff"

// renamingReader подменяет заголовок каноническими именами колонок до разбора gocsv
type renamingReader struct {
	*csv.Reader
	resolved  map[string]string
	headerOut bool
	header    []string
}

func (r *renamingReader) Read() ([]string, error) {
	record, err := r.Reader.Read()
	if err != nil {
		return nil, err
	}
	if !r.headerOut {
		r.headerOut = true
		// Excel пишет UTF-8 BOM перед первой колонкой
		if len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
		}
		r.header = domain.RenameWith(r.resolved, record)
		return r.header, nil
	}
	return record, nil
}

func (r *renamingReader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, err
		}
		records = append(records, record)
	}
}
