package domain

import "strings"

// Канонические имена колонок наблюдений
const (
	ColumnSiteVisitID = "site_visit_id"
	ColumnX           = "x"
	ColumnY           = "y"
	ColumnObserved    = "observed_value"
	ColumnPredicted   = "predicted_value"
	ColumnVisitDate   = "visit_date"
	ColumnProjectCode = "project_code"
)

// RequiredColumns - колонки, без которых загрузка наблюдений невозможна
var RequiredColumns = []string{
	ColumnSiteVisitID,
	ColumnX,
	ColumnY,
	ColumnObserved,
	ColumnPredicted,
}

// AttributeColumns - необязательные колонки, переносимые в Observation.Attributes
var AttributeColumns = []string{
	ColumnVisitDate,
	ColumnProjectCode,
}

// ColumnMapping - пара (имя в источнике, каноническое имя)
type ColumnMapping struct {
	Source    string `json:"source" mapstructure:"source" validate:"required"`
	Canonical string `json:"canonical" mapstructure:"canonical" validate:"required"`
}

// SchemaMapping - упорядоченная таблица переименования колонок.
// Разрешается один раз в Resolve, а не на каждой итерации.
type SchemaMapping []ColumnMapping

// Resolve строит таблицу source -> canonical.
// Колонки без явного правила сохраняют свое имя (в нижнем регистре).
// При повторе source побеждает первое правило.
func (m SchemaMapping) Resolve() map[string]string {
	resolved := make(map[string]string, len(m))
	for _, cm := range m {
		key := strings.ToLower(strings.TrimSpace(cm.Source))
		if _, exists := resolved[key]; exists {
			continue
		}
		resolved[key] = strings.TrimSpace(cm.Canonical)
	}
	return resolved
}

// RenameWith применяет заранее разрешенную таблицу к заголовку
func RenameWith(resolved map[string]string, header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := resolved[key]; ok {
			out[i] = canonical
			continue
		}
		out[i] = key
	}
	return out
}

// SourceFor возвращает имя колонки в источнике для канонического имени
func (m SchemaMapping) SourceFor(canonical string) string {
	for _, cm := range m {
		if cm.Canonical == canonical {
			return cm.Source
		}
	}
	return canonical
}

// MissingColumns возвращает обязательные канонические колонки, отсутствующие в заголовке
func MissingColumns(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
