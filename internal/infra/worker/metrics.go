package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the worker's own Prometheus series. Pipeline-level counters
// live in the observability/metrics package.
type Metrics struct {
	TaskRunsTotal        *prometheus.CounterVec
	TaskDurationSeconds  *prometheus.HistogramVec
	TaskLastSuccess      *prometheus.GaugeVec
	TaskSkippedTotal     *prometheus.CounterVec
	ConfigFallbacksTotal *prometheus.CounterVec
	ConfigFallbackActive prometheus.Gauge
	ConfigLoadTimestamp  prometheus.Gauge
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		TaskRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_task_runs_total",
			Help: "Scheduled task runs by task and status (success, failure)",
		}, []string{"task", "status"}),
		TaskDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_task_duration_seconds",
			Help:    "Duration of scheduled task runs",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600},
		}, []string{"task"}),
		TaskLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_task_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task",
		}, []string{"task"}),
		TaskSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_task_skipped_total",
			Help: "Task triggers skipped because the previous run was still active",
		}, []string{"task"}),
		ConfigFallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_config_fallbacks_total",
			Help: "Invalid configuration values replaced by defaults",
		}, []string{"field"}),
		ConfigFallbackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_config_fallback_active",
			Help: "1 if any configuration default was applied at startup",
		}),
		ConfigLoadTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_config_load_timestamp_seconds",
			Help: "Unix time the configuration was loaded",
		}),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.TaskRunsTotal,
		m.TaskDurationSeconds,
		m.TaskLastSuccess,
		m.TaskSkippedTotal,
		m.ConfigFallbacksTotal,
		m.ConfigFallbackActive,
		m.ConfigLoadTimestamp,
	)
}

// RecordTaskRun records one finished run.
func (m *Metrics) RecordTaskRun(task string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.TaskRunsTotal.WithLabelValues(task, status).Inc()
	m.TaskDurationSeconds.WithLabelValues(task).Observe(d.Seconds())
	if err == nil {
		m.TaskLastSuccess.WithLabelValues(task).SetToCurrentTime()
	}
}

func (m *Metrics) RecordTaskSkipped(task string) {
	m.TaskSkippedTotal.WithLabelValues(task).Inc()
}

func (m *Metrics) RecordConfigFallback(field string) {
	m.ConfigFallbacksTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.ConfigFallbackActive.Set(1)
		return
	}
	m.ConfigFallbackActive.Set(0)
}

func (m *Metrics) RecordConfigLoad() {
	m.ConfigLoadTimestamp.SetToCurrentTime()
}
