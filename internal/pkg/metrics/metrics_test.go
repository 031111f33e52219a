package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/landscape-rescale/internal/pkg/metrics"
)

func TestCollector_RecordKind(t *testing.T) {
	c := metrics.NewCollector("rescale_test")

	c.RecordKind("grid", 55, 5, 4, 2)
	c.RecordKind("grid", 5, 0, 1, 0)

	assert.Equal(t, 60.0, testutil.ToFloat64(c.ObservationsAssigned.WithLabelValues("grid")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.ObservationsUnassigned.WithLabelValues("grid")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.UnitsEmitted.WithLabelValues("grid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.UnitsFiltered.WithLabelValues("grid")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// two collectors with the same namespace must not collide
	a := metrics.NewCollector("rescale_test")
	b := metrics.NewCollector("rescale_test")

	a.RecordIndicator(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.IndicatorsTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IndicatorsTotal.WithLabelValues("failed")))
}
