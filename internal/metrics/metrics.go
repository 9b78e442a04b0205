package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers portal fetches, syncs and consultations. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Portal call latency by operation
	PortalLatency *prometheus.HistogramVec

	// Portal call failures by operation and reason
	PortalFailures *prometheus.CounterVec

	// Child collections that failed to sync
	SyncCollectionFailures *prometheus.CounterVec

	SyncLatency prometheus.Histogram

	// Consultation outcomes by source and status
	Consultations *prometheus.CounterVec

	// Scrapes that joined an in-flight scrape of the same case
	SharedScrapes prometheus.Counter
}

// New registers all metrics on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PortalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judicial_portal_request_duration_seconds",
			Help:    "Duration of portal API requests by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}), // operation: "basic_info", "activities", "subjects", "documents"

		PortalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judicial_portal_failures_total",
			Help: "Total failed portal API requests by operation and reason",
		}, []string{"operation", "reason"}),

		SyncCollectionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judicial_sync_collection_failures_total",
			Help: "Total child collection replace failures by collection",
		}, []string{"collection"}),

		SyncLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "judicial_sync_duration_seconds",
			Help:    "Duration of a full case sync including child collections",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Consultations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judicial_consultations_total",
			Help: "Total consultations by source and outcome status",
		}, []string{"source", "status"}),

		SharedScrapes: f.NewCounter(prometheus.CounterOpts{
			Name: "judicial_consult_shared_scrapes_total",
			Help: "Consultations served by joining an in-flight scrape of the same case",
		}),
	}
}

func (m *Metrics) ObservePortalLatency(operation string, d time.Duration) {
	if m != nil {
		m.PortalLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPortalFailure(operation, reason string) {
	if m != nil {
		m.PortalFailures.WithLabelValues(operation, reason).Inc()
	}
}

func (m *Metrics) IncrementSyncFailure(collection string) {
	if m != nil {
		m.SyncCollectionFailures.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) ObserveSyncLatency(d time.Duration) {
	if m != nil {
		m.SyncLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementConsultation(source, status string) {
	if m != nil {
		m.Consultations.WithLabelValues(source, status).Inc()
	}
}

func (m *Metrics) IncrementSharedScrape() {
	if m != nil {
		m.SharedScrapes.Inc()
	}
}
