// Package metrics exposes Prometheus instrumentation for extractions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics provides observability for extraction, batch runs and the job
// worker. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Extraction outcomes: ok or failed
	Extractions *prometheus.CounterVec

	// Wall time of single extractions, successful or not
	Duration prometheus.Histogram

	// Heuristic warnings by code
	Warnings *prometheus.CounterVec

	// Files processed by batch runs by outcome
	BatchFiles *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cvextract_extractions_total",
			Help: "Total extractions by outcome",
		}, []string{"outcome"}),

		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cvextract_extraction_duration_seconds",
			Help:    "Duration of single document extractions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Warnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cvextract_warnings_total",
			Help: "Extraction warnings by code",
		}, []string{"code"}),

		BatchFiles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cvextract_batch_files_total",
			Help: "Files processed by batch runs by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveExtraction records one extraction: its outcome, duration and the
// codes of any warnings it produced.
func (m *Metrics) ObserveExtraction(d time.Duration, warningCodes []string, err error) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
	if err != nil {
		m.Extractions.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	m.Extractions.WithLabelValues(OutcomeOK).Inc()
	for _, code := range warningCodes {
		m.Warnings.WithLabelValues(code).Inc()
	}
}

// IncrementBatchFile records one file of a batch run.
func (m *Metrics) IncrementBatchFile(outcome string) {
	if m != nil {
		m.BatchFiles.WithLabelValues(outcome).Inc()
	}
}
