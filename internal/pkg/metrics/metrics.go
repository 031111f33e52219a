package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector - метрики пайплайна пересчета и API
type Collector struct {
	registry *prometheus.Registry

	// Pipeline
	IndicatorsTotal        *prometheus.CounterVec
	ObservationsLoaded     prometheus.Counter
	ObservationsSkipped    prometheus.Counter
	ObservationsAssigned   *prometheus.CounterVec
	ObservationsUnassigned *prometheus.CounterVec
	UnitsEmitted           *prometheus.CounterVec
	UnitsFiltered          *prometheus.CounterVec
	StageDuration          *prometheus.HistogramVec

	// API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector создает коллектор на собственном реестре
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		IndicatorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "indicators_total",
				Help:      "Indicators processed by outcome",
			},
			[]string{"outcome"}, // "ok", "failed"
		),

		ObservationsLoaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_loaded_total",
				Help:      "Observation records loaded",
			},
		),

		ObservationsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_skipped_total",
				Help:      "Observation rows rejected at load",
			},
		),

		ObservationsAssigned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_assigned_total",
				Help:      "Observations assigned to a unit by unit kind",
			},
			[]string{"kind"},
		),

		ObservationsUnassigned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_unassigned_total",
				Help:      "Observations outside every unit by unit kind",
			},
			[]string{"kind"},
		),

		UnitsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_emitted_total",
				Help:      "Unit summaries emitted by unit kind",
			},
			[]string{"kind"},
		),

		UnitsFiltered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_filtered_total",
				Help:      "Units dropped by the minimum count filter by unit kind",
			},
			[]string{"kind"},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"}, // "load_observations", "load_layer", "assign", "summarize", "write"
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "API requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"route"},
		),
	}
}

// Registry возвращает реестр для экспорта
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Timer измеряет длительность этапа
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// StartStage запускает таймер для этапа пайплайна
func (c *Collector) StartStage(stage string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: c.StageDuration.WithLabelValues(stage),
	}
}

// ObserveDuration записывает прошедшее время
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordIndicator учитывает завершение индикатора
func (c *Collector) RecordIndicator(failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	c.IndicatorsTotal.WithLabelValues(outcome).Inc()
}

// RecordKind учитывает результат назначения и фильтрации для типа единиц
func (c *Collector) RecordKind(kind string, assigned, unassigned, emitted, filtered int) {
	c.ObservationsAssigned.WithLabelValues(kind).Add(float64(assigned))
	c.ObservationsUnassigned.WithLabelValues(kind).Add(float64(unassigned))
	c.UnitsEmitted.WithLabelValues(kind).Add(float64(emitted))
	c.UnitsFiltered.WithLabelValues(kind).Add(float64(filtered))
}

// RecordAPIRequest учитывает HTTP запрос
func (c *Collector) RecordAPIRequest(route, method, status string, duration time.Duration) {
	c.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
