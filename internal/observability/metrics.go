// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run status label values.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Optimizer metrics
	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	GenerationsCompleted prometheus.Counter
	GenerationDuration   prometheus.Histogram
	EvaluationsTotal     prometheus.Counter
	BestScore            prometheus.Gauge
	MeanScore            prometheus.Gauge
	ActiveRuns           prometheus.Gauge

	// Ingestion metrics
	PricesIngested  prometheus.Counter
	RowsRejected    *prometheus.CounterVec
	ProgressClients prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "b3_genetic_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total number of optimization runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "run_duration_seconds",
			Help:      "Optimization run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		GenerationsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "generations_completed_total",
			Help:      "Total number of generations evolved",
		}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "generation_duration_seconds",
			Help:      "Time spent scoring and breeding one generation",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		EvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "evaluations_total",
			Help:      "Total number of genome fitness evaluations",
		}),
		BestScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "best_score",
			Help:      "Best final capital in the most recent generation",
		}),
		MeanScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "mean_score",
			Help:      "Mean final capital in the most recent generation",
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "active_runs",
			Help:      "Number of optimization runs in progress",
		}),

		PricesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "prices_ingested_total",
			Help:      "Total number of price points stored",
		}),
		RowsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_rejected_total",
			Help:      "Total number of CSV rows rejected by reason",
		}, []string{"reason"}),
		ProgressClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "clients",
			Help:      "Number of connected progress WebSocket clients",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful optimization run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordGeneration records one evolved generation of populationSize genomes.
func (m *Metrics) RecordGeneration(best, mean float64, populationSize int, seconds float64) {
	m.GenerationsCompleted.Inc()
	m.GenerationDuration.Observe(seconds)
	m.EvaluationsTotal.Add(float64(populationSize))
	m.BestScore.Set(best)
	m.MeanScore.Set(mean)
}

// RecordRun records a finished optimization run.
func (m *Metrics) RecordRun(status string, durationSeconds float64, finishedUnix int64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordGeneration records a generation on DefaultMetrics.
func RecordGeneration(best, mean float64, populationSize int, seconds float64) {
	DefaultMetrics.RecordGeneration(best, mean, populationSize, seconds)
}

// RecordRun records a finished run on DefaultMetrics.
func RecordRun(status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.RecordRun(status, durationSeconds, finishedUnix)
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}

// RecordIngest records stored prices and rejected rows on DefaultMetrics.
func RecordIngest(stored int, rejectedBySymbol, rejectedByDate, malformed int) {
	DefaultMetrics.PricesIngested.Add(float64(stored))
	DefaultMetrics.RowsRejected.WithLabelValues("symbol").Add(float64(rejectedBySymbol))
	DefaultMetrics.RowsRejected.WithLabelValues("date").Add(float64(rejectedByDate))
	DefaultMetrics.RowsRejected.WithLabelValues("malformed").Add(float64(malformed))
}
