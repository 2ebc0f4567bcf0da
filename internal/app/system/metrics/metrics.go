// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters for maintenance batches, postal lookups and
// background jobs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Batch record outcomes by batch ("address_fix", "type_migration") and
	// outcome ("converted", "split", "migrated", "unchanged", "failed").
	BatchRecords *prometheus.CounterVec

	BatchDuration *prometheus.HistogramVec

	// Postal lookups by result ("hit", "miss", "not_found", "error").
	PostalLookups *prometheus.CounterVec

	PostalLatency prometheus.Histogram

	// Jobs finished by type and status ("completed", "failed").
	JobsFinished *prometheus.CounterVec

	registry *prometheus.Registry
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BatchRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratamembers_batch_records_total",
			Help: "Member records processed by maintenance batches, by outcome",
		}, []string{"batch", "outcome"}),

		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stratamembers_batch_duration_seconds",
			Help:    "Wall time of a maintenance batch",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"batch"}),

		PostalLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratamembers_postal_lookups_total",
			Help: "Postal code lookups by result",
		}, []string{"result"}),

		PostalLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratamembers_postal_lookup_duration_seconds",
			Help:    "Latency of upstream postal code lookups",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stratamembers_jobs_finished_total",
			Help: "Background jobs finished, by type and status",
		}, []string{"type", "status"}),
	}
}

// Handler serves the registry in the Prometheus text format. Metrics built
// with NewWith fall back to the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncBatchRecord records one processed record.
func (m *Metrics) IncBatchRecord(batch, outcome string) {
	if m != nil {
		m.BatchRecords.WithLabelValues(batch, outcome).Inc()
	}
}

// ObserveBatch records how long a batch took.
func (m *Metrics) ObserveBatch(batch string, d time.Duration) {
	if m != nil {
		m.BatchDuration.WithLabelValues(batch).Observe(d.Seconds())
	}
}

// IncPostalLookup records a postal lookup result.
func (m *Metrics) IncPostalLookup(result string) {
	if m != nil {
		m.PostalLookups.WithLabelValues(result).Inc()
	}
}

// ObservePostalLatency records upstream lookup latency.
func (m *Metrics) ObservePostalLatency(d time.Duration) {
	if m != nil {
		m.PostalLatency.Observe(d.Seconds())
	}
}

// IncJobFinished records a finished background job.
func (m *Metrics) IncJobFinished(jobType, status string) {
	if m != nil {
		m.JobsFinished.WithLabelValues(jobType, status).Inc()
	}
}
