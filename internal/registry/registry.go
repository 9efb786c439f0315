// Package registry owns the process-wide aggregate: id counters, totals, the
// emergency-mode flag and the reviewer quorum threshold. One instance is
// constructed at startup and handed to every service, so there is no hidden
// global state and a single writer for every counter.
package registry

import (
	"context"
	"sync"

	"certo/internal/platform/metrics"
	"certo/internal/policy"
	id "certo/pkg/domain"
)

// Mirror receives best-effort copies of operational flags. A nil Mirror is
// skipped. Failures are reported to the caller-supplied callback only;
// the in-process aggregate remains the source of truth.
type Mirror interface {
	SetEmergencyMode(ctx context.Context, active bool) error
}

// Stats is a read-only snapshot of the aggregate.
type Stats struct {
	CertificatesIssued     uint64 `json:"certificates_issued"`
	VerificationsPerformed uint64 `json:"verifications_performed"`
	TotalProviders         uint64 `json:"total_providers"`
	VerifiedProviders      uint64 `json:"verified_providers"`
	ActiveRecalls          uint64 `json:"active_recalls"`
	EmergencyMode          bool   `json:"emergency_mode"`
	QuorumThreshold        int    `json:"quorum_threshold"`
}

// Registry is the counter/flag aggregate. Ids are allocated only after an
// operation's validations pass, advance strictly, and are never reused.
type Registry struct {
	mu sync.Mutex

	nextCertificate  uint64
	nextRequest      uint64
	nextRecall       uint64
	nextVerification uint64
	nextAudit        uint64

	certificatesIssued     uint64
	verificationsPerformed uint64
	totalProviders         uint64
	verifiedProviders      uint64
	activeRecalls          uint64

	emergencyMode   bool
	quorumThreshold int

	metrics *metrics.Metrics
	mirror  Mirror
}

// Option configures the Registry.
type Option func(*Registry)

// WithMetrics mirrors aggregate changes into Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithMirror copies operational flags to an external store (Redis).
func WithMirror(mirror Mirror) Option {
	return func(r *Registry) { r.mirror = mirror }
}

// New creates the aggregate with the configured quorum threshold.
// Out-of-bounds thresholds fall back to the policy default.
func New(quorumThreshold int, opts ...Option) *Registry {
	if quorumThreshold < policy.MinQuorum || quorumThreshold > policy.MaxQuorum {
		quorumThreshold = policy.DefaultQuorum
	}
	r := &Registry{quorumThreshold: quorumThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NextCertificateID allocates the next certificate id. Call only after every
// precondition of the issuing operation has passed.
func (r *Registry) NextCertificateID() id.CertificateID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCertificate++
	return id.CertificateID(r.nextCertificate)
}

// NextRequestID allocates the next verification request id.
func (r *Registry) NextRequestID() id.RequestID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRequest++
	return id.RequestID(r.nextRequest)
}

// NextRecallID allocates the next recall id.
func (r *Registry) NextRecallID() id.RecallID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRecall++
	return id.RecallID(r.nextRecall)
}

// NextVerificationID allocates the next verification record id.
func (r *Registry) NextVerificationID() id.VerificationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextVerification++
	return id.VerificationID(r.nextVerification)
}

// NextAuditID allocates the next audit entry id.
func (r *Registry) NextAuditID() id.AuditID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAudit++
	return id.AuditID(r.nextAudit)
}

// CertificateIssued bumps the issuance total.
func (r *Registry) CertificateIssued() {
	r.mu.Lock()
	r.certificatesIssued++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.CertificatesIssued.Inc()
	}
}

// VerificationPerformed bumps the verification total.
func (r *Registry) VerificationPerformed() {
	r.mu.Lock()
	r.verificationsPerformed++
	r.mu.Unlock()
}

// ProviderRegistered bumps the provider total.
func (r *Registry) ProviderRegistered() {
	r.mu.Lock()
	r.totalProviders++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ProvidersRegistered.Inc()
	}
}

// ProviderVerified bumps the verified-provider total.
func (r *Registry) ProviderVerified() {
	r.mu.Lock()
	r.verifiedProviders++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ProvidersVerified.Inc()
	}
}

// ProviderUnverified decrements the verified-provider total when a verified
// provider is suspended or revoked.
func (r *Registry) ProviderUnverified() {
	r.mu.Lock()
	if r.verifiedProviders > 0 {
		r.verifiedProviders--
	}
	r.mu.Unlock()
}

// RecallOpened bumps the active-recall count. Called alongside
// EnterEmergency when a recall is what raised the freeze.
func (r *Registry) RecallOpened() {
	r.mu.Lock()
	r.activeRecalls++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RecallsInitiated.Inc()
	}
}

// EnterEmergency raises the global issuance freeze. Idempotent.
func (r *Registry) EnterEmergency(ctx context.Context) {
	r.mu.Lock()
	r.emergencyMode = true
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SetEmergencyMode(true)
	}
	if r.mirror != nil {
		_ = r.mirror.SetEmergencyMode(ctx, true)
	}
}

// ClearEmergency lifts the global issuance freeze.
func (r *Registry) ClearEmergency(ctx context.Context) {
	r.mu.Lock()
	r.emergencyMode = false
	r.activeRecalls = 0
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SetEmergencyMode(false)
	}
	if r.mirror != nil {
		_ = r.mirror.SetEmergencyMode(ctx, false)
	}
}

// EmergencyMode reports whether issuance is frozen system-wide.
func (r *Registry) EmergencyMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emergencyMode
}

// SetQuorumThreshold updates the reviewer quorum. Bounds are validated by the
// admin operation before calling here.
func (r *Registry) SetQuorumThreshold(threshold int) {
	r.mu.Lock()
	r.quorumThreshold = threshold
	r.mu.Unlock()
}

// QuorumThreshold returns the current reviewer quorum.
func (r *Registry) QuorumThreshold() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quorumThreshold
}

// Snapshot returns the current aggregate totals.
func (r *Registry) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		CertificatesIssued:     r.certificatesIssued,
		VerificationsPerformed: r.verificationsPerformed,
		TotalProviders:         r.totalProviders,
		VerifiedProviders:      r.verifiedProviders,
		ActiveRecalls:          r.activeRecalls,
		EmergencyMode:          r.emergencyMode,
		QuorumThreshold:        r.quorumThreshold,
	}
}
