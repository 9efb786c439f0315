package provider

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"certo/internal/audit"
	"certo/internal/policy"
	"certo/internal/provider/authority"
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

// Service owns the provider registry state machine. Every operation
// validates all preconditions before any mutation.
type Service struct {
	store    Store
	registry *registry.Registry
	source   authority.Source
	auditor  Auditor
	owner    id.Identity
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, reg *registry.Registry, source authority.Source, auditor Auditor, owner id.Identity, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: reg,
		source:   source,
		auditor:  auditor,
		owner:    owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries a provider registration.
type RegisterInput struct {
	LicenseHash     []byte
	Jurisdiction    string
	RequestedLevel  int
	Specializations []string
	Institution     string
	EvidenceHashes  [][]byte
}

// Register creates a Pending provider and opens its verification request.
// Returns the new request id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*VerificationRequest, error) {
	caller := requestcontext.Caller(ctx)
	if !validate.Principal(caller, s.owner) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.Hash(in.LicenseHash) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "license hash must be 32 bytes")
	}
	if !validate.AuthorityLevel(in.RequestedLevel) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "requested authority level out of range")
	}
	if !validate.BoundedString(in.Jurisdiction, policy.MaxNameLen) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "jurisdiction missing or too long")
	}
	if in.Institution != "" && !validate.BoundedString(in.Institution, policy.MaxNameLen) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution too long")
	}
	if len(in.Specializations) > policy.MaxSpecsCount {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many specializations")
	}
	if len(in.EvidenceHashes) > policy.MaxEvidenceHashes {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many evidence hashes")
	}
	for _, h := range in.EvidenceHashes {
		if !validate.NonEmptyHash(h) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "empty evidence hash")
		}
	}

	if _, err := s.store.FindProvider(ctx, caller); err == nil {
		return nil, dErrors.New(dErrors.CodeAlreadyExists, "provider already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup provider")
	}

	now := requestcontext.Clock(ctx)
	p := &Provider{
		ID:               caller,
		LicenseHash:      in.LicenseHash,
		Jurisdiction:     in.Jurisdiction,
		AuthorityLevel:   1,
		Status:           StatusPending,
		CredentialExpiry: now + policy.CredentialValidity,
		Specializations:  in.Specializations,
		Institution:      in.Institution,
	}
	request := &VerificationRequest{
		Provider:       caller,
		ID:             s.registry.NextRequestID(),
		RequestedLevel: in.RequestedLevel,
		EvidenceHashes: in.EvidenceHashes,
		Status:         RequestPending,
	}

	if err := s.store.SaveProvider(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	if err := s.store.SaveRequest(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save verification request")
	}
	s.registry.ProviderRegistered()
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:      caller,
		Action:       audit.ActionProviderRegistered,
		Actor:        caller,
		Clock:        now,
		Details:      "requested level " + itoa(in.RequestedLevel),
		EvidenceHash: in.LicenseHash,
		ImpactLevel:  2,
	}); err != nil {
		return nil, err
	}
	return request, nil
}

// Review applies one reviewer vote to a pending verification request. Below
// quorum the outcome reports pending; that is a valid intermediate state,
// not an error.
func (s *Service) Review(ctx context.Context, providerID id.Identity, requestID id.RequestID, approve bool, comments string) (*ReviewOutcome, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if comments != "" && !validate.BoundedString(comments, policy.MaxDetailLen) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "comments too long")
	}
	if caller == providerID {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "providers cannot review themselves")
	}

	request, err := s.getRequest(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != RequestPending {
		return nil, dErrors.New(dErrors.CodeConflict, "request already decided")
	}

	reviewer, err := s.reviewerRecord(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.source.Eligible(caller, reviewer); err != nil {
		return nil, err
	}
	if request.HasVoted(caller) {
		return nil, dErrors.New(dErrors.CodeDuplicate, "reviewer already voted")
	}
	if len(request.Votes) >= policy.MaxReviewers {
		return nil, dErrors.New(dErrors.CodeConflict, "reviewer list full")
	}

	request.Votes = append(request.Votes, Vote{Reviewer: caller, Approve: approve, Comments: comments})

	// The threshold is clamped to the reviewer list bound; otherwise a
	// threshold above MaxReviewers could never be reached and every pending
	// request would strand.
	threshold := s.registry.QuorumThreshold()
	if threshold > policy.MaxReviewers {
		threshold = policy.MaxReviewers
	}
	decision := s.source.Decide(votesFor(request), threshold)
	now := requestcontext.Clock(ctx)

	switch decision {
	case authority.DecisionPending:
		if err := s.store.SaveRequest(ctx, request); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save verification request")
		}
		if err := s.auditor.Emit(ctx, audit.Entry{
			Subject:     providerID,
			Action:      audit.ActionProviderReviewed,
			Actor:       caller,
			Clock:       now,
			Details:     comments,
			ImpactLevel: 1,
		}); err != nil {
			return nil, err
		}
		return &ReviewOutcome{
			Status:    RequestPending,
			Votes:     len(request.Votes),
			Approvals: request.Approvals(),
		}, nil

	case authority.DecisionApproved:
		p, err := s.Get(ctx, providerID)
		if err != nil {
			return nil, err
		}
		if p.Status != StatusPending {
			return nil, dErrors.New(dErrors.CodeConflict, "provider no longer pending")
		}
		request.Status = RequestApproved
		request.DecidedAt = now
		p.Status = StatusVerified
		p.AuthorityLevel = request.RequestedLevel
		p.VerifiedBy = caller
		p.VerifiedAt = now
		if err := s.store.SaveRequest(ctx, request); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save verification request")
		}
		if err := s.store.SaveProvider(ctx, p); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
		}
		s.registry.ProviderVerified()
		if err := s.auditor.Emit(ctx, audit.Entry{
			Subject:     providerID,
			Action:      audit.ActionProviderVerified,
			Actor:       caller,
			Clock:       now,
			Details:     "authority level " + itoa(request.RequestedLevel),
			ImpactLevel: 3,
		}); err != nil {
			return nil, err
		}
		return &ReviewOutcome{
			Status:    RequestApproved,
			Votes:     len(request.Votes),
			Approvals: request.Approvals(),
			QuorumMet: true,
		}, nil

	default: // DecisionRejected
		request.Status = RequestRejected
		request.DecidedAt = now
		if err := s.store.SaveRequest(ctx, request); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save verification request")
		}
		if p, err := s.Get(ctx, providerID); err == nil && p.Status == StatusPending {
			p.Status = StatusRejected
			if err := s.store.SaveProvider(ctx, p); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
			}
		}
		if err := s.auditor.Emit(ctx, audit.Entry{
			Subject:     providerID,
			Action:      audit.ActionProviderRejected,
			Actor:       caller,
			Clock:       now,
			Details:     comments,
			ImpactLevel: 3,
		}); err != nil {
			return nil, err
		}
		return &ReviewOutcome{
			Status:    RequestRejected,
			Votes:     len(request.Votes),
			Approvals: request.Approvals(),
			QuorumMet: true,
		}, nil
	}
}

// Suspend pauses a provider. The caller must be the owner or a verified
// provider with strictly greater authority than the target.
func (s *Service) Suspend(ctx context.Context, providerID id.Identity, reason string, duration uint64) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.BoundedString(reason, policy.MaxDetailLen) {
		return dErrors.New(dErrors.CodeInvalidInput, "reason missing or too long")
	}
	if caller == providerID {
		return dErrors.New(dErrors.CodeNotAuthorized, "self-suspension is not allowed")
	}

	target, err := s.Get(ctx, providerID)
	if err != nil {
		return err
	}

	if caller != s.owner {
		actor, err := s.Get(ctx, caller)
		if err != nil {
			return dErrors.New(dErrors.CodeNotAuthorized, "caller is not a registered provider")
		}
		if actor.Status != StatusVerified || actor.AuthorityLevel <= target.AuthorityLevel {
			return dErrors.New(dErrors.CodeNotAuthorized, "caller authority does not exceed target")
		}
	}

	switch target.Status {
	case StatusRevoked:
		return dErrors.New(dErrors.CodeConflict, "provider is revoked")
	case StatusSuspended:
		return dErrors.New(dErrors.CodeDuplicate, "provider already suspended")
	}

	wasVerified := target.Status == StatusVerified
	target.Status = StatusSuspended
	// The suspension window rides on the credential expiry.
	target.CredentialExpiry += duration
	if err := s.store.SaveProvider(ctx, target); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	if wasVerified {
		s.registry.ProviderUnverified()
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     providerID,
		Action:      audit.ActionProviderSuspended,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		Details:     reason,
		ImpactLevel: 4,
	})
}

// Reinstate lifts a suspension. Owner only.
func (s *Service) Reinstate(ctx context.Context, providerID id.Identity) error {
	caller := requestcontext.Caller(ctx)
	if caller != s.owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner reinstates providers")
	}
	target, err := s.Get(ctx, providerID)
	if err != nil {
		return err
	}
	if target.Status != StatusSuspended {
		return dErrors.New(dErrors.CodeConflict, "provider is not suspended")
	}

	target.Status = StatusVerified
	if err := s.store.SaveProvider(ctx, target); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	s.registry.ProviderVerified()
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     providerID,
		Action:      audit.ActionProviderReinstated,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		ImpactLevel: 3,
	})
}

// Revoke permanently removes a provider's authority. Owner only; terminal.
func (s *Service) Revoke(ctx context.Context, providerID id.Identity, reason string) error {
	caller := requestcontext.Caller(ctx)
	if caller != s.owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the system owner revokes providers")
	}
	if !validate.BoundedString(reason, policy.MaxDetailLen) {
		return dErrors.New(dErrors.CodeInvalidInput, "reason missing or too long")
	}
	target, err := s.Get(ctx, providerID)
	if err != nil {
		return err
	}
	if target.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeDuplicate, "provider already revoked")
	}

	wasVerified := target.Status == StatusVerified
	target.Status = StatusRevoked
	if err := s.store.SaveProvider(ctx, target); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	if wasVerified {
		s.registry.ProviderUnverified()
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:     providerID,
		Action:      audit.ActionProviderRevoked,
		Actor:       caller,
		Clock:       requestcontext.Clock(ctx),
		Details:     reason,
		ImpactLevel: 4,
	})
}

// RenewCredentials refreshes the caller's license inside the renewal window:
// too early before [expiry - renewalPeriod], expired at or past expiry.
func (s *Service) RenewCredentials(ctx context.Context, newLicenseHash, evidenceHash []byte) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if !validate.Hash(newLicenseHash) {
		return dErrors.New(dErrors.CodeInvalidInput, "license hash must be 32 bytes")
	}
	if evidenceHash != nil && !validate.NonEmptyHash(evidenceHash) {
		return dErrors.New(dErrors.CodeInvalidInput, "empty evidence hash")
	}

	p, err := s.Get(ctx, caller)
	if err != nil {
		return err
	}
	if p.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeNotAuthorized, "provider is revoked")
	}

	now := requestcontext.Clock(ctx)
	if now >= p.CredentialExpiry {
		return dErrors.New(dErrors.CodeExpired, "credentials already expired")
	}
	if p.CredentialExpiry-now > policy.RenewalPeriod {
		return dErrors.New(dErrors.CodeNotYetOpen, "renewal window not yet open")
	}

	p.LicenseHash = newLicenseHash
	p.CredentialExpiry = now + policy.CredentialValidity
	if err := s.store.SaveProvider(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	return s.auditor.Emit(ctx, audit.Entry{
		Subject:      caller,
		Action:       audit.ActionCredentialsRenewed,
		Actor:        caller,
		Clock:        now,
		EvidenceHash: evidenceHash,
		ImpactLevel:  2,
	})
}

// Endorse vouches for a peer. One active endorsement per ordered pair; the
// endorsee's reputation grows by a tenth of the endorser's, capped.
func (s *Service) Endorse(ctx context.Context, endorsee id.Identity, endorseType EndorsementType, evidenceHash []byte) (*Endorsement, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid principal")
	}
	if caller == endorsee {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "self-endorsement is not allowed")
	}
	switch endorseType {
	case EndorseClinical, EndorseResearch, EndorseInstitution:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown endorsement type")
	}
	if evidenceHash != nil && !validate.NonEmptyHash(evidenceHash) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty evidence hash")
	}

	endorser, err := s.Get(ctx, caller)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not a registered provider")
	}
	if endorser.Status != StatusVerified || endorser.AuthorityLevel < policy.EndorserLevel {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "endorser must be verified with sufficient authority")
	}
	target, err := s.Get(ctx, endorsee)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Clock(ctx)
	score := endorser.Reputation / policy.EndorsementShare
	endorsement := &Endorsement{
		Endorser:     caller,
		Endorsee:     endorsee,
		Type:         endorseType,
		Score:        score,
		EvidenceHash: evidenceHash,
		ValidFrom:    now,
		ValidUntil:   now + policy.EndorsementValidity,
	}

	target.Reputation += score
	if target.Reputation > policy.MaxReputation {
		target.Reputation = policy.MaxReputation
	}

	// Last write wins on the (endorser, endorsee) pair.
	if err := s.store.SaveEndorsement(ctx, endorsement); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save endorsement")
	}
	if err := s.store.SaveProvider(ctx, target); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	if err := s.auditor.Emit(ctx, audit.Entry{
		Subject:      endorsee,
		Action:       audit.ActionEndorsed,
		Actor:        caller,
		Clock:        now,
		Details:      string(endorseType),
		EvidenceHash: evidenceHash,
		ImpactLevel:  1,
	}); err != nil {
		return nil, err
	}
	return endorsement, nil
}

// RecordIssued bumps the issuance counter. Called by the certificate
// registry only, after its own validations have passed.
func (s *Service) RecordIssued(ctx context.Context, providerID id.Identity) error {
	p, err := s.Get(ctx, providerID)
	if err != nil {
		return err
	}
	p.CertificatesIssued++
	if err := s.store.SaveProvider(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save provider")
	}
	return nil
}

// Get returns a provider by principal.
func (s *Service) Get(ctx context.Context, providerID id.Identity) (*Provider, error) {
	p, err := s.store.FindProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provider not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup provider")
	}
	return p, nil
}

// GetRequest returns a verification request by (provider, id).
func (s *Service) GetRequest(ctx context.Context, providerID id.Identity, requestID id.RequestID) (*VerificationRequest, error) {
	return s.getRequest(ctx, providerID, requestID)
}

func (s *Service) getRequest(ctx context.Context, providerID id.Identity, requestID id.RequestID) (*VerificationRequest, error) {
	request, err := s.store.FindRequest(ctx, providerID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup verification request")
	}
	return request, nil
}

// reviewerRecord loads the caller's provider record when one exists. The
// owner has no provider record in single-approver mode; eligibility decides.
func (s *Service) reviewerRecord(ctx context.Context, caller id.Identity) (*authority.Reviewer, error) {
	p, err := s.store.FindProvider(ctx, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup reviewer")
	}
	return &authority.Reviewer{
		ID:             p.ID,
		Verified:       p.Status == StatusVerified,
		AuthorityLevel: p.AuthorityLevel,
	}, nil
}

func votesFor(r *VerificationRequest) []authority.Vote {
	votes := make([]authority.Vote, len(r.Votes))
	for i, v := range r.Votes {
		votes[i] = authority.Vote{Reviewer: v.Reviewer, Approve: v.Approve}
	}
	return votes
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
