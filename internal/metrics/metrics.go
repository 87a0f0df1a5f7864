// Package metrics provides Prometheus metrics for the clause pipeline and retrieval index.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the pipeline reports to.
type Metrics struct {
	ClausesTagged      prometheus.Counter
	GenerationFailures *prometheus.CounterVec
	RiskScores         prometheus.Histogram
	BatchesProcessed   *prometheus.CounterVec
	IndexBuildsTotal   *prometheus.CounterVec
	IndexBuildDuration prometheus.Histogram
	IndexChunksWritten prometheus.Counter
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClausesTagged: f.NewCounter(prometheus.CounterOpts{
			Name: "clausewise_clauses_tagged_total",
			Help: "Total number of clauses tagged",
		}),
		GenerationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clausewise_generation_failures_total",
			Help: "Generation calls replaced by an error marker",
		}, []string{"task"}),
		RiskScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clausewise_risk_score",
			Help:    "Distribution of clause risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		BatchesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clausewise_batches_processed_total",
			Help: "Documents run through the batch pipeline",
		}, []string{"status"}),
		IndexBuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clausewise_index_builds_total",
			Help: "Session index builds",
		}, []string{"status"}),
		IndexBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clausewise_index_build_duration_seconds",
			Help:    "Duration of session index builds in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		IndexChunksWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "clausewise_index_chunks_written_total",
			Help: "Retrieval chunks written to session indexes",
		}),
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clausewise_queries_total",
			Help: "Retrieval queries",
		}, []string{"mode", "status"}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clausewise_query_duration_seconds",
			Help:    "Duration of retrieval queries in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveBuild records a session index build outcome.
func (m *Metrics) ObserveBuild(start time.Time, chunks int, err error) {
	m.IndexBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.IndexBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	m.IndexBuildsTotal.WithLabelValues("ok").Inc()
	m.IndexChunksWritten.Add(float64(chunks))
}

// ObserveQuery records a query outcome for the given mode ("search" or "answer").
func (m *Metrics) ObserveQuery(mode string, start time.Time, err error) {
	m.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(mode, status).Inc()
}

// ObserveBatch records a batch pipeline outcome.
func (m *Metrics) ObserveBatch(err error) {
	if err != nil {
		m.BatchesProcessed.WithLabelValues("error").Inc()
		return
	}
	m.BatchesProcessed.WithLabelValues("ok").Inc()
}
