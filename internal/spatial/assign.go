package spatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/landscape-rescale/internal/domain"
)

// Assign сопоставляет каждому наблюдению не более одной единицы.
// Результат сохраняет порядок входа; наблюдения вне единиц в него не попадают.
func Assign(observations []domain.Observation, loc Locator) []domain.Assignment {
	assignments := make([]domain.Assignment, 0, len(observations))
	for i, obs := range observations {
		if !finite(obs.X) || !finite(obs.Y) {
			continue
		}
		unitID, ok := loc.Locate(orb.Point{obs.X, obs.Y})
		if !ok {
			continue
		}
		assignments = append(assignments, domain.Assignment{
			Index:  i,
			UnitID: unitID,
		})
	}
	return assignments
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
