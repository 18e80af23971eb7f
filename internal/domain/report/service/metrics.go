package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "report_ingest"

// Metrics holds the pipeline collectors.
type Metrics struct {
	Runs        prometheus.Counter
	RunDuration prometheus.Histogram
	Candidates  *prometheus.CounterVec // labels: category, outcome
	Ingested    *prometheus.CounterVec // labels: category
	FetchTries  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Pipeline runs started.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "candidates_total",
			Help:      "Candidates processed, by category and outcome.",
		}, []string{"category", "outcome"}),
		Ingested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_ingested_total",
			Help:      "Reports registered, by category.",
		}, []string{"category"}),
		FetchTries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP attempts spent on successful downloads.",
		}),
	}
}
