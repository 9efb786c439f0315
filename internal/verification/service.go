package verification

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"certo/internal/audit"
	"certo/internal/certificate"
	"certo/internal/patient"
	"certo/internal/platform/metrics"
	"certo/internal/policy"
	"certo/internal/registry"
	"certo/internal/validate"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
	"certo/pkg/platform/sentinel"
	"certo/pkg/requestcontext"
)

// Certificates is the slice of the certificate store the engine scans.
type Certificates interface {
	FindByVaccineHash(ctx context.Context, patient id.Identity, vaccineHash []byte) ([]*certificate.Certificate, error)
	ActiveRecallForHash(ctx context.Context, vaccineHash []byte) (*certificate.Recall, error)
	SaveCertificate(ctx context.Context, c *certificate.Certificate) error
}

// Patients is the slice of the patient service the engine consumes.
type Patients interface {
	Get(ctx context.Context, patientID id.Identity) (*patient.Profile, error)
}

// Auditor is the slice of the audit publisher this service needs.
type Auditor interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service answers privacy-tiered disclosure queries: does this patient hold
// valid certificates for every required credential hash, at a tier each
// certificate's owner has granted?
type Service struct {
	store    Store
	certs    Certificates
	patients Patients
	registry *registry.Registry
	auditor  Auditor
	owner    id.Identity
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, certs Certificates, patients Patients, reg *registry.Registry, auditor Auditor, owner id.Identity, opts ...Option) *Service {
	s := &Service{
		store:    store,
		certs:    certs,
		patients: patients,
		registry: reg,
		auditor:  auditor,
		owner:    owner,
		tracer:   otel.Tracer("certo/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyInput carries one disclosure query.
type VerifyInput struct {
	Patient         id.Identity
	RequiredHashes  [][]byte
	DisclosureLevel int
	Purpose         string
}

// Verify evaluates a conjunction over the required hashes: each must be
// covered by a certificate that is valid at the current clock, carries no
// active recall on its hash, and grants the requested tier. Evaluation stops
// at the first uncovered hash. The verdict is written as a record either way;
// certificate usage counters move only when every hash is covered.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*Record, bool, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.Principal(in.Patient, s.owner) {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "invalid patient principal")
	}
	if len(in.RequiredHashes) == 0 || len(in.RequiredHashes) > policy.MaxRequiredHashes {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "required hash count out of range")
	}
	for _, h := range in.RequiredHashes {
		if !validate.Hash(h) {
			return nil, false, dErrors.New(dErrors.CodeInvalidInput, "required hashes must be 32 bytes")
		}
	}
	if !validate.DisclosureLevel(in.DisclosureLevel) {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "disclosure level out of range")
	}
	if !validate.BoundedString(in.Purpose, policy.MaxDetailLen) {
		return nil, false, dErrors.New(dErrors.CodeInvalidInput, "purpose missing or too long")
	}
	if _, err := s.patients.Get(ctx, in.Patient); err != nil {
		return nil, false, err
	}

	ctx, span := s.tracer.Start(ctx, "verification.Verify",
		trace.WithAttributes(
			attribute.Int("disclosure.level", in.DisclosureLevel),
			attribute.Int("required.hashes", len(in.RequiredHashes)),
		))
	defer span.End()

	now := requestcontext.Clock(ctx)
	passed := true
	var matched []*certificate.Certificate

	for _, hash := range in.RequiredHashes {
		cert, err := s.matchHash(ctx, in.Patient, hash, in.DisclosureLevel, now)
		if err != nil {
			return nil, false, err
		}
		if cert == nil {
			passed = false
			break
		}
		matched = append(matched, cert)
	}
	span.SetAttributes(attribute.Bool("passed", passed))

	record := &Record{
		Patient:         in.Patient,
		Verifier:        caller,
		ID:              s.registry.NextVerificationID(),
		DisclosureLevel: in.DisclosureLevel,
		Purpose:         in.Purpose,
		ResultHash:      HashResult(passed),
		Clock:           now,
	}
	if passed {
		for _, cert := range matched {
			record.MatchedCertificates = append(record.MatchedCertificates, cert.ID)
			cert.VerificationCount++
			if err := s.certs.SaveCertificate(ctx, cert); err != nil {
				return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "save certificate usage")
			}
		}
	}
	if err := s.store.SaveRecord(ctx, record); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "save verification record")
	}
	s.registry.VerificationPerformed()
	if s.metrics != nil {
		s.metrics.RecordVerification(passed)
	}
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:     in.Patient,
		Action:      audit.ActionVerification,
		Actor:       caller,
		Clock:       now,
		Details:     in.Purpose,
		ImpactLevel: 1,
	}); err != nil {
		return nil, false, err
	}
	return record, passed, nil
}

// matchHash returns the first certificate covering hash at the requested
// tier, or nil when none qualifies. A recalled hash never matches.
func (s *Service) matchHash(ctx context.Context, patientID id.Identity, hash []byte, level int, now uint64) (*certificate.Certificate, error) {
	if _, err := s.certs.ActiveRecallForHash(ctx, hash); err == nil {
		return nil, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check recalls")
	}

	certs, err := s.certs.FindByVaccineHash(ctx, patientID, hash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan certificates")
	}
	for _, cert := range certs {
		if cert.Valid(now) && cert.Disclosure.Allows(level) {
			return cert, nil
		}
	}
	return nil, nil
}

// GetRecord returns one verification record.
func (s *Service) GetRecord(ctx context.Context, patientID id.Identity, recordID id.VerificationID) (*Record, error) {
	r, err := s.store.FindRecord(ctx, patientID, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup verification record")
	}
	return r, nil
}
