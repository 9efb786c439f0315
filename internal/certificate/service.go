package certificate

import (
	"context"
	"errors"
	"log/slog"

	"certo/internal/audit"
	"certo/internal/patient"
	"certo/internal/platform/metrics"
	"certo/internal/policy"
	"certo/internal/provider"
	"certo/internal/registry"
	"certo/internal/validate"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
)

// Auditor is the slice of the audit publisher this service needs.
type Auditor interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Patients is the slice of the patient service the registry consumes.
type Patients interface {
	Get(ctx context.Context, patientID id.Identity) (*patient.Profile, error)
	RecordIssued(ctx context.Context, patientID id.Identity) error
	DefaultDisclosure(ctx context.Context, patientID id.Identity) (int, error)
}

// Providers is the slice of the provider service the registry consumes.
type Providers interface {
	Get(ctx context.Context, providerID id.Identity) (*provider.Provider, error)
	RecordIssued(ctx context.Context, providerID id.Identity) error
}

// Service owns certificate issuance, revocation and emergency recalls.
type Service struct {
	store     Store
	registry  *registry.Registry
	patients  Patients
	providers Providers
	auditor   Auditor
	owner     id.Identity
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, reg *registry.Registry, patients Patients, providers Providers, auditor Auditor, owner id.Identity, opts ...Option) *Service {
	s := &Service{
		store:     store,
		registry:  reg,
		patients:  patients,
		providers: providers,
		auditor:   auditor,
		owner:     owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UseDefaultDisclosure asks Issue to take the disclosure mask from the
// patient's stored privacy preferences.
const UseDefaultDisclosure = -1

// IssueInput carries a certificate issuance.
type IssueInput struct {
	Patient        id.Identity
	VaccineHash    []byte
	ValidityPeriod uint64
	Commitment     []byte
	DisclosureMask int
}

// Issue mints a certificate for a patient. The caller must be a verified,
// non-suspended provider, the patient must exist, and the system must not be
// in emergency mode. The certificate id is allocated only after every check
// passes, so failed calls never consume ids.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*Certificate, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.Principal(in.Patient, s.owner) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid patient principal")
	}
	if !validate.Hash(in.VaccineHash) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vaccine hash must be 32 bytes")
	}
	if !validate.Hash(in.Commitment) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "commitment must be 32 bytes")
	}
	if !validate.ValidityPeriod(in.ValidityPeriod) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "validity period out of policy bounds")
	}
	if in.DisclosureMask != UseDefaultDisclosure && !validate.PrivacyMask(in.DisclosureMask) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "disclosure mask out of range")
	}

	issuer, err := s.providers.Get(ctx, caller)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not a registered provider")
	}
	if !issuer.CanIssue() {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "issuer is not a verified provider")
	}
	if _, err := s.patients.Get(ctx, in.Patient); err != nil {
		return nil, err
	}
	if s.registry.EmergencyMode() {
		return nil, dErrors.New(dErrors.CodeSuspended, "issuance frozen by emergency recall")
	}

	mask := in.DisclosureMask
	if mask == UseDefaultDisclosure {
		mask, err = s.patients.DefaultDisclosure(ctx, in.Patient)
		if err != nil {
			return nil, err
		}
	}

	now := requestcontext.Clock(ctx)
	cert := &Certificate{
		Patient:     in.Patient,
		ID:          s.registry.NextCertificateID(),
		VaccineHash: in.VaccineHash,
		Issuer:      caller,
		IssuedAt:    now,
		ValidUntil:  now + in.ValidityPeriod,
		Commitment:  in.Commitment,
		Disclosure:  DisclosureFromBits(mask),
		Active:      true,
	}
	if err := s.store.SaveCertificate(ctx, cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
	}
	if err := s.patients.RecordIssued(ctx, in.Patient); err != nil {
		return nil, err
	}
	if err := s.providers.RecordIssued(ctx, caller); err != nil {
		return nil, err
	}
	s.registry.CertificateIssued()
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:      in.Patient,
		Action:       audit.ActionCertificateIssued,
		Actor:        caller,
		Clock:        now,
		Details:      "certificate " + cert.ID.String(),
		EvidenceHash: in.VaccineHash,
		ImpactLevel:  2,
	}); err != nil {
		return nil, err
	}
	return cert, nil
}

// Revoke disables a certificate. Authorized for the issuing provider, any
// verified supervisor, or the system owner.
func (s *Service) Revoke(ctx context.Context, patientID id.Identity, certID id.CertificateID, reason string) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.BoundedString(reason, policy.MaxDetailLen) {
		return dErrors.New(dErrors.CodeInvalidInput, "reason missing or too long")
	}

	cert, err := s.Get(ctx, patientID, certID)
	if err != nil {
		return err
	}
	if err := s.authorizeRevoke(ctx, caller, cert); err != nil {
		return err
	}
	if !cert.Active && cert.EmergencyRevoked {
		return dErrors.New(dErrors.CodeDuplicate, "certificate already revoked")
	}

	cert.Active = false
	cert.EmergencyRevoked = true
	if err := s.store.SaveCertificate(ctx, cert); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
	}
	if s.metrics != nil {
		s.metrics.CertificatesRevoked.Inc()
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     patientID,
		Action:      audit.ActionCertificateRevoked,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		Details:     reason,
		ImpactLevel: 3,
	})
}

func (s *Service) authorizeRevoke(ctx context.Context, caller id.Identity, cert *Certificate) error {
	if caller == s.owner || caller == cert.Issuer {
		return nil
	}
	p, err := s.providers.Get(ctx, caller)
	if err != nil {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller may not revoke this certificate")
	}
	if p.Status != provider.StatusVerified || p.AuthorityLevel < policy.SupervisorLevel {
		return dErrors.New(dErrors.CodeNotAuthorized, "caller may not revoke this certificate")
	}
	return nil
}

// InitiateRecall opens an emergency recall for a credential hash and freezes
// all new issuance system-wide until the owner clears the flag. Deliberately
// blunt: one recall halts the whole registry, and the verification engine
// additionally refuses matches on the recalled hash.
func (s *Service) InitiateRecall(ctx context.Context, vaccineHash []byte, reason string) (*Recall, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.Hash(vaccineHash) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vaccine hash must be 32 bytes")
	}
	if !validate.BoundedString(reason, policy.MaxDetailLen) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reason missing or too long")
	}

	p, err := s.providers.Get(ctx, caller)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not a registered provider")
	}
	if p.Status != provider.StatusVerified || p.AuthorityLevel < policy.SupervisorLevel {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "recalls require a verified supervisor")
	}

	now := requestcontext.Clock(ctx)
	recall := &Recall{
		ID:          s.registry.NextRecallID(),
		VaccineHash: vaccineHash,
		Reason:      reason,
		Initiator:   caller,
		InitiatedAt: now,
		Active:      true,
	}
	if err := s.store.SaveRecall(ctx, recall); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save recall")
	}
	s.registry.RecallOpened()
	s.registry.EnterEmergency(ctx)
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:      caller,
		Action:       audit.ActionRecallInitiated,
		Actor:        caller,
		Clock:        now,
		Details:      reason,
		EvidenceHash: vaccineHash,
		ImpactLevel:  4,
	}); err != nil {
		return nil, err
	}
	return recall, nil
}

// ConfirmRecall adds a supervisor confirmation to an active recall.
func (s *Service) ConfirmRecall(ctx context.Context, recallID id.RecallID) (*Recall, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}

	recall, err := s.GetRecall(ctx, recallID)
	if err != nil {
		return nil, err
	}
	if !recall.Active {
		return nil, dErrors.New(dErrors.CodeConflict, "recall is no longer active")
	}

	p, err := s.providers.Get(ctx, caller)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not a registered provider")
	}
	if p.Status != provider.StatusVerified || p.AuthorityLevel < policy.SupervisorLevel {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "confirmations require a verified supervisor")
	}
	if recall.HasConfirmed(caller) {
		return nil, dErrors.New(dErrors.CodeDuplicate, "recall already confirmed by caller")
	}

	recall.Confirmations++
	recall.ConfirmedBy = append(recall.ConfirmedBy, caller)
	if err := s.store.SaveRecall(ctx, recall); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save recall")
	}
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:     recall.Initiator,
		Action:      audit.ActionRecallConfirmed,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		Details:     "recall " + recall.ID.String(),
		ImpactLevel: 3,
	}); err != nil {
		return nil, err
	}
	return recall, nil
}

// DeclareEmergency raises the system-wide issuance freeze without a recall.
// Owner only; idempotent.
func (s *Service) DeclareEmergency(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	if caller != s.owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner declares emergency mode")
	}

	s.registry.EnterEmergency(ctx)
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     caller,
		Action:      audit.ActionEmergencyDeclared,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		ImpactLevel: 4,
	})
}

// ClearEmergency deactivates all recalls and lifts the issuance freeze.
// Owner only.
func (s *Service) ClearEmergency(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	if caller != s.owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner clears emergency mode")
	}

	recalls, err := s.store.ListActiveRecalls(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list recalls")
	}
	for _, r := range recalls {
		r.Active = false
		if err := s.store.SaveRecall(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save recall")
		}
	}
	s.registry.ClearEmergency(ctx)
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     caller,
		Action:      audit.ActionEmergencyCleared,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		ImpactLevel: 3,
	})
}

// Get returns a certificate by (patient, id).
func (s *Service) Get(ctx context.Context, patientID id.Identity, certID id.CertificateID) (*Certificate, error) {
	cert, err := s.store.FindCertificate(ctx, patientID, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup certificate")
	}
	return cert, nil
}

// GetRecall returns a recall by id.
func (s *Service) GetRecall(ctx context.Context, recallID id.RecallID) (*Recall, error) {
	recall, err := s.store.FindRecall(ctx, recallID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recall not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup recall")
	}
	return recall, nil
}
