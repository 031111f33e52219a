package domain

// Observation - одна запись визита на участок: наблюдаемое и предсказанное покрытие
type Observation struct {
	SiteVisitID string            `json:"site_visit_id" db:"site_visit_id"`
	X           float64           `json:"x" db:"x"`
	Y           float64           `json:"y" db:"y"`
	Observed    float64           `json:"observed_value" db:"observed_value"`
	Predicted   float64           `json:"predicted_value" db:"predicted_value"`
	Attributes  map[string]string `json:"attributes,omitempty" db:"-"`
}

// ObservationSet - все наблюдения одного индикатора в одной CRS
type ObservationSet struct {
	Indicator    string        `json:"indicator"`
	CRS          CRS           `json:"crs"`
	Observations []Observation `json:"observations"`

	// Skipped - строки, отброшенные при загрузке (пустые или нечисловые обязательные поля)
	Skipped int `json:"skipped"`
}

// Len возвращает количество наблюдений
func (s *ObservationSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Observations)
}

// DropDuplicateVisits оставляет первую запись каждого site_visit_id.
// Повторы учитываются в Skipped; возвращаются их идентификаторы в порядке появления.
func (s *ObservationSet) DropDuplicateVisits() []string {
	if s == nil || len(s.Observations) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(s.Observations))
	kept := s.Observations[:0]
	var dropped []string
	for _, obs := range s.Observations {
		if _, dup := seen[obs.SiteVisitID]; dup {
			dropped = append(dropped, obs.SiteVisitID)
			continue
		}
		seen[obs.SiteVisitID] = struct{}{}
		kept = append(kept, obs)
	}

	s.Observations = kept
	s.Skipped += len(dropped)
	return dropped
}
