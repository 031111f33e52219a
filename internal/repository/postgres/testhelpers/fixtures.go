package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ObservationFixture - строка тестовой таблицы наблюдений
type ObservationFixture struct {
	Indicator   string
	SiteVisitID string
	X, Y        float64
	SRID        int
	Observed    *float64
	Predicted   float64
	VisitDate   string
}

// RegionFixture - полигон тестового слоя регионов в WKT
type RegionFixture struct {
	ID   string
	Name string
	WKT  string
	SRID int
}

// CreateObservationTable создает таблицу наблюдений с точечной геометрией и заполняет ее
func (tdb *TestDB) CreateObservationTable(t *testing.T, table string, rows []ObservationFixture) {
	t.Helper()

	tdb.exec(t, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table))
	tdb.exec(t, fmt.Sprintf(`
		CREATE TABLE %s (
			taxon        TEXT NOT NULL,
			site_visit   TEXT,
			cover        DOUBLE PRECISION,
			predicted    DOUBLE PRECISION,
			visit_date   DATE,
			geom         geometry(Point)
		)`, table))
	tdb.tables = append(tdb.tables, table)

	for _, r := range rows {
		_, err := tdb.DB.Exec(fmt.Sprintf(`
			INSERT INTO %s (taxon, site_visit, cover, predicted, visit_date, geom)
			VALUES ($1, $2, $3, $4, NULLIF($5, '')::date, ST_SetSRID(ST_MakePoint($6, $7), $8))`, table),
			r.Indicator, r.SiteVisitID, r.Observed, r.Predicted, r.VisitDate, r.X, r.Y, r.SRID)
		require.NoError(t, err)
	}
}

// CreateRegionTable создает таблицу полигонов и заполняет ее
func (tdb *TestDB) CreateRegionTable(t *testing.T, table string, rows []RegionFixture) {
	t.Helper()

	tdb.exec(t, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table))
	tdb.exec(t, fmt.Sprintf(`
		CREATE TABLE %s (
			reg_code TEXT PRIMARY KEY,
			reg_name TEXT,
			geom     geometry
		)`, table))
	tdb.tables = append(tdb.tables, table)

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*4)
	for i, r := range rows {
		n := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, ST_GeomFromText($%d, $%d))", n+1, n+2, n+3, n+4))
		args = append(args, r.ID, r.Name, r.WKT, r.SRID)
	}
	if len(values) == 0 {
		return
	}

	_, err := tdb.DB.Exec(fmt.Sprintf(`INSERT INTO %s (reg_code, reg_name, geom) VALUES %s`,
		table, strings.Join(values, ", ")), args...)
	require.NoError(t, err)
}

func (tdb *TestDB) exec(t *testing.T, query string) {
	t.Helper()
	_, err := tdb.DB.Exec(query)
	require.NoError(t, err)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
