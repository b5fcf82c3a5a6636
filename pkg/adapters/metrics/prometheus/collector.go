package prometheus

import (
	"strconv"
	"time"

	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	validations       *prometheus.CounterVec
	stateLoads        *prometheus.CounterVec
	stateSaves        *prometheus.CounterVec
	activeTurns       prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

var _ ports.MetricsCollector = (*Collector)(nil)

// NewCollector creates a collector registered with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dago_turns_total",
				Help: "Total number of conversation turns processed",
			},
			[]string{"status"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dago_turn_duration_seconds",
				Help:    "Conversation turn duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dago_flow_validations_total",
				Help: "Total number of flow graph validations",
			},
			[]string{"valid"},
		),
		stateLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dago_state_loads_total",
				Help: "Total number of conversation state loads by result",
			},
			[]string{"result"},
		),
		stateSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dago_state_saves_total",
				Help: "Total number of conversation state saves by result",
			},
			[]string{"result"},
		),
		activeTurns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dago_active_turns",
				Help: "Number of turns currently in flight",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dago_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dago_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dago_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordTurn records a finished turn
func (c *Collector) RecordTurn(status string, duration time.Duration) {
	c.turnsTotal.WithLabelValues(status).Inc()
	c.turnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordValidation records a flow validation outcome
func (c *Collector) RecordValidation(valid bool) {
	c.validations.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// RecordStateLoad records a state load by result (found, not_found, backend_error)
func (c *Collector) RecordStateLoad(result string) {
	c.stateLoads.WithLabelValues(result).Inc()
}

// RecordStateSave records a state save outcome
func (c *Collector) RecordStateSave(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.stateSaves.WithLabelValues(result).Inc()
}

// SetActiveTurns sets the number of in-flight turns
func (c *Collector) SetActiveTurns(count int) {
	c.activeTurns.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
