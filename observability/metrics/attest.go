package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type AttestMetrics struct {
	submissionsAccepted *prometheus.CounterVec
	submissionsRejected *prometheus.CounterVec
	revocations         prometheus.Counter
	migrations          prometheus.Counter
	anomaliesFlagged    prometheus.Counter
	feesCollected       prometheus.Counter
	batchSize           prometheus.Histogram
}

var (
	attestOnce     sync.Once
	attestRegistry *AttestMetrics
)

func Attest() *AttestMetrics {
	attestOnce.Do(func() {
		attestRegistry = &AttestMetrics{
			submissionsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "attest_submissions_accepted_total",
				Help: "Count of attestation records committed, by entry path.",
			}, []string{"path"}),
			submissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "attest_submissions_rejected_total",
				Help: "Count of rejected submission attempts by reason.",
			}, []string{"reason"}),
			revocations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "attest_revocations_total",
				Help: "Count of records flipped to revoked status.",
			}),
			migrations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "attest_migrations_total",
				Help: "Count of schema version migrations applied to records.",
			}),
			anomaliesFlagged: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "attest_anomalies_flagged_total",
				Help: "Count of anomaly annotations attached to records.",
			}),
			feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "attest_fees_collected_total",
				Help: "Sum of fees collected, in the fee token's smallest unit.",
			}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "attest_batch_size",
				Help:    "Distribution of accepted batch sizes.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			}),
		}
		prometheus.MustRegister(
			attestRegistry.submissionsAccepted,
			attestRegistry.submissionsRejected,
			attestRegistry.revocations,
			attestRegistry.migrations,
			attestRegistry.anomaliesFlagged,
			attestRegistry.feesCollected,
			attestRegistry.batchSize,
		)
	})
	return attestRegistry
}

func (m *AttestMetrics) ObserveSubmissionAccepted(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "single"
	}
	m.submissionsAccepted.WithLabelValues(path).Inc()
}

func (m *AttestMetrics) ObserveSubmissionRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

func (m *AttestMetrics) ObserveRevocation() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

func (m *AttestMetrics) ObserveMigration() {
	if m == nil {
		return
	}
	m.migrations.Inc()
}

func (m *AttestMetrics) ObserveAnomalyFlagged() {
	if m == nil {
		return
	}
	m.anomaliesFlagged.Inc()
}

func (m *AttestMetrics) ObserveFeeCollected(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.feesCollected.Add(amount)
}

func (m *AttestMetrics) ObserveBatchSize(size int) {
	if m == nil || size <= 0 {
		return
	}
	m.batchSize.Observe(float64(size))
}
