package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	CertificatesIssued    prometheus.Counter
	CertificatesRevoked   prometheus.Counter
	VerificationsTotal    *prometheus.CounterVec
	ProvidersRegistered   prometheus.Counter
	ProvidersVerified     prometheus.Counter
	RecallsInitiated      prometheus.Counter
	EmergencyMode         prometheus.Gauge
	OperationsRejected    *prometheus.CounterVec
	RequestLatencySeconds *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_certificates_issued_total",
			Help: "Total number of immunity certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certo_verifications_total",
			Help: "Disclosure verifications performed, by outcome",
		}, []string{"outcome"}),
		ProvidersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_providers_registered_total",
			Help: "Total number of provider registrations accepted",
		}),
		ProvidersVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_providers_verified_total",
			Help: "Total number of providers that reached verified status",
		}),
		RecallsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_recalls_initiated_total",
			Help: "Total number of emergency recalls initiated",
		}),
		EmergencyMode: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "certo_emergency_mode",
			Help: "1 when the system-wide issuance freeze is active",
		}),
		OperationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certo_operations_rejected_total",
			Help: "Requests rejected before mutation, by HTTP status",
		}, []string{"status"}),
		RequestLatencySeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certo_request_latency_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "status"}),
	}
}

// RecordVerification tracks a verification outcome without exposing which
// subject it concerned.
func (m *Metrics) RecordVerification(passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRejection tracks a rejected request by HTTP status.
func (m *Metrics) RecordRejection(status string) {
	m.OperationsRejected.WithLabelValues(status).Inc()
}

// SetEmergencyMode reflects the global freeze flag.
func (m *Metrics) SetEmergencyMode(active bool) {
	if active {
		m.EmergencyMode.Set(1)
		return
	}
	m.EmergencyMode.Set(0)
}
