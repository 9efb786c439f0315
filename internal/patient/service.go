package patient

import (
	"context"
	"errors"
	"log/slog"

	"certo/internal/audit"
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

// Service owns patient profile transitions. All validations run before any
// mutation; a rejected call leaves no partial state.
type Service struct {
	store   Store
	auditor Auditor
	owner   id.Identity
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, auditor Auditor, owner id.Identity, opts ...Option) *Service {
	s := &Service{store: store, auditor: auditor, owner: owner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the caller's profile. Re-registration returns the existing
// profile without mutation.
func (s *Service) Register(ctx context.Context, privacyPreferences int, emergencyContact id.Identity) (*Profile, error) {
	caller := requestcontext.Caller(ctx)
	if !validate.Principal(caller, s.owner) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.PrivacyMask(privacyPreferences) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "privacy preferences out of range")
	}
	if !emergencyContact.IsZero() {
		if !validate.Principal(emergencyContact, s.owner) || emergencyContact == caller {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid emergency contact")
		}
	}

	if existing, err := s.store.Find(ctx, caller); err == nil {
		// Idempotent: repeat registration succeeds without mutation.
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient profile")
	}

	now := requestcontext.Clock(ctx)
	profile := &Profile{
		ID:                 caller,
		PrivacyPreferences: privacyPreferences,
		EmergencyContact:   emergencyContact,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Save(ctx, profile); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save patient profile")
	}
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:     caller,
		Action:      audit.ActionPatientRegistered,
		Actor:       caller,
		Clock:       now,
		ImpactLevel: 1,
	}); err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns a profile by principal.
func (s *Service) Get(ctx context.Context, patient id.Identity) (*Profile, error) {
	profile, err := s.store.Find(ctx, patient)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient profile")
	}
	return profile, nil
}

// VerifyIdentity marks a patient as identity-verified. Owner only.
func (s *Service) VerifyIdentity(ctx context.Context, patient id.Identity) error {
	caller := requestcontext.Caller(ctx)
	if caller != s.owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner verifies identities")
	}
	profile, err := s.Get(ctx, patient)
	if err != nil {
		return err
	}
	if profile.Verified {
		return dErrors.New(dErrors.CodeDuplicate, "patient already verified")
	}

	now := requestcontext.Clock(ctx)
	profile.Verified = true
	profile.UpdatedAt = now
	if err := s.store.Save(ctx, profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save patient profile")
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     patient,
		Action:      audit.ActionPatientVerified,
		Actor:       caller,
		Clock:       now,
		ImpactLevel: 2,
	})
}

// SetEmergencyContact updates the caller's own emergency contact.
func (s *Service) SetEmergencyContact(ctx context.Context, contact id.Identity) error {
	caller := requestcontext.Caller(ctx)
	if !validate.Principal(contact, s.owner) || contact == caller {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid emergency contact")
	}
	profile, err := s.Get(ctx, caller)
	if err != nil {
		return err
	}
	profile.EmergencyContact = contact
	profile.UpdatedAt = requestcontext.Clock(ctx)
	if err := s.store.Save(ctx, profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save patient profile")
	}
	return nil
}

// RecordIssued bumps the certificate count. Called by the certificate
// registry only, after its own validations have passed.
func (s *Service) RecordIssued(ctx context.Context, patient id.Identity) error {
	profile, err := s.Get(ctx, patient)
	if err != nil {
		return err
	}
	profile.TotalCertificates++
	profile.UpdatedAt = requestcontext.Clock(ctx)
	if err := s.store.Save(ctx, profile); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save patient profile")
	}
	return nil
}

// DefaultDisclosure returns the patient's preference mask, for issuers that
// do not override it.
func (s *Service) DefaultDisclosure(ctx context.Context, patient id.Identity) (int, error) {
	profile, err := s.Get(ctx, patient)
	if err != nil {
		return 0, err
	}
	if !validate.PrivacyMask(profile.PrivacyPreferences) {
		return 0, dErrors.New(dErrors.CodeInternal, "stored preference mask out of range")
	}
	return profile.PrivacyPreferences, nil
}
