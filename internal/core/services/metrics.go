package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for harvest runs. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	RecordsSkipped  *prometheus.CounterVec
	HarvestFailures *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_pages_total",
			Help: "Total pages committed, by schema.",
		},
		[]string{"schema"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_written_total",
			Help: "Total records upserted, by schema.",
		},
		[]string{"schema"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "Page fetch latency against the remote archive.",
			Buckets: prometheus.DefBuckets,
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_skipped_total",
			Help: "Total records skipped, by reason.",
		},
		[]string{"reason"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_failures_total",
			Help: "Total terminal harvest failures, by error type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(pages, records, fetchDuration, skipped, failures)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		RecordsTotal:    records,
		FetchDuration:   fetchDuration,
		RecordsSkipped:  skipped,
		HarvestFailures: failures,
	}
}

// IncPage increments the committed pages counter for a schema.
func (m *Metrics) IncPage(schema string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(schema).Inc()
}

// IncRecords adds written records to a schema's counter.
func (m *Metrics) IncRecords(schema string, n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(schema).Add(float64(n))
}

// ObserveFetch records one page fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncSkipped increments the skipped records counter for a reason label.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.RecordsSkipped.WithLabelValues(reason).Inc()
}

// IncFailure increments the terminal failures counter for an error type.
func (m *Metrics) IncFailure(errorType string) {
	if m == nil {
		return
	}
	m.HarvestFailures.WithLabelValues(errorType).Inc()
}
