package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Бизнес-метрики
	TrafficChecksTotal   *prometheus.CounterVec
	TrafficCheckDuration *prometheus.HistogramVec
	DelayMinutes         *prometheus.HistogramVec
	NotificationsTotal   *prometheus.CounterVec
	PipelineRunsTotal    *prometheus.CounterVec
	PipelineStepsTotal   *prometheus.CounterVec

	// Workflow метрики
	WorkflowRunsTotal *prometheus.CounterVec
	WorkflowsActive   prometheus.Gauge

	// Fleet sweep
	SweepRunsTotal    *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	SweepRoutesTotal  prometheus.Counter
	SweepErrorsTotal  prometheus.Counter

	// Системные метрики
	Goroutines  prometheus.GaugeFunc
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// Init инициализирует метрики
func Init(namespace string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		TrafficChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traffic_checks_total",
				Help:      "Total number of traffic provider lookups",
			},
			[]string{"provider", "status"},
		),

		TrafficCheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "traffic_check_duration_seconds",
				Help:      "Duration of traffic provider lookups",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),

		DelayMinutes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delay_minutes",
				Help:      "Observed route delays in minutes",
				Buckets:   []float64{0, 5, 10, 15, 30, 45, 60, 90, 120, 240},
			},
			[]string{"source"},
		),

		NotificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notification attempts",
			},
			[]string{"channel", "status"},
		),

		PipelineRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total number of delay-notification pipeline runs",
			},
			[]string{"outcome"},
		),

		PipelineStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_steps_total",
				Help:      "Total number of pipeline step executions",
			},
			[]string{"step", "status"},
		),

		WorkflowRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_runs_total",
				Help:      "Total number of workflow runs by kind and terminal status",
			},
			[]string{"kind", "status"},
		),

		WorkflowsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflows_active",
				Help:      "Current number of running workflows",
			},
		),

		SweepRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Total number of fleet sweep invocations",
			},
			[]string{"status"},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of fleet sweep runs",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		SweepRoutesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_routes_total",
				Help:      "Total number of routes processed by fleet sweeps",
			},
		),

		SweepErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_errors_total",
				Help:      "Total number of per-route errors during fleet sweeps",
			},
		),

		Goroutines: promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
			func() float64 { return float64(runtime.NumGoroutine()) },
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "service_info",
				Help:      "Service metadata",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return Init("freightwatch")
	}
	return defaultMetrics
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP записывает метрики HTTP запроса
func (m *Metrics) ObserveHTTP(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
