package provider

import (
	id "certo/pkg/domain"
)

// Status is a provider's position in the verification state machine.
// Unregistered -> Pending -> {Verified, Rejected} -> {Suspended, Revoked}.
// Providers are never deleted; Revoked is terminal, Suspended is recoverable
// by the owner.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// Provider is a healthcare provider record, keyed by principal.
type Provider struct {
	ID                 id.Identity `json:"id"`
	LicenseHash        []byte      `json:"license_hash"`
	Jurisdiction       string      `json:"jurisdiction"`
	AuthorityLevel     int         `json:"authority_level"`
	CertificatesIssued uint64      `json:"certificates_issued"`
	Status             Status      `json:"status"`
	VerifiedBy         id.Identity `json:"verified_by,omitempty"`
	VerifiedAt         uint64      `json:"verified_at,omitempty"`
	CredentialExpiry   uint64      `json:"credential_expiry"`
	Reputation         int         `json:"reputation"`
	Specializations    []string    `json:"specializations,omitempty"`
	Institution        string      `json:"institution,omitempty"`
}

// CanIssue reports whether the provider may issue certificates.
func (p *Provider) CanIssue() bool {
	return p.Status == StatusVerified
}

// RequestStatus is the lifecycle of a verification request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Vote is one reviewer's decision on a verification request.
type Vote struct {
	Reviewer id.Identity `json:"reviewer"`
	Approve  bool        `json:"approve"`
	Comments string      `json:"comments,omitempty"`
}

// VerificationRequest tracks quorum review of a provider registration,
// keyed by (Provider, ID). Immutable once decided.
type VerificationRequest struct {
	Provider       id.Identity   `json:"provider"`
	ID             id.RequestID  `json:"id"`
	RequestedLevel int           `json:"requested_level"`
	EvidenceHashes [][]byte      `json:"evidence_hashes,omitempty"`
	Votes          []Vote        `json:"votes"`
	Status         RequestStatus `json:"status"`
	DecidedAt      uint64        `json:"decided_at,omitempty"`
}

// HasVoted reports whether a reviewer already appears on the request.
func (r *VerificationRequest) HasVoted(reviewer id.Identity) bool {
	for _, v := range r.Votes {
		if v.Reviewer == reviewer {
			return true
		}
	}
	return false
}

// Approvals counts approving votes.
func (r *VerificationRequest) Approvals() int {
	n := 0
	for _, v := range r.Votes {
		if v.Approve {
			n++
		}
	}
	return n
}

// EndorsementType labels why a provider vouches for a peer.
type EndorsementType string

const (
	EndorseClinical    EndorsementType = "clinical"
	EndorseResearch    EndorsementType = "research"
	EndorseInstitution EndorsementType = "institutional"
)

// Endorsement is one active endorsement per ordered (Endorser, Endorsee)
// pair; re-endorsing overwrites.
type Endorsement struct {
	Endorser     id.Identity     `json:"endorser"`
	Endorsee     id.Identity     `json:"endorsee"`
	Type         EndorsementType `json:"type"`
	Score        int             `json:"score"`
	EvidenceHash []byte          `json:"evidence_hash,omitempty"`
	ValidFrom    uint64          `json:"valid_from"`
	ValidUntil   uint64          `json:"valid_until"`
}

// ReviewOutcome is what a review call returns: below quorum it reports a
// pending tally rather than an error.
type ReviewOutcome struct {
	Status    RequestStatus `json:"status"`
	Votes     int           `json:"votes"`
	Approvals int           `json:"approvals"`
	QuorumMet bool          `json:"quorum_met"`
}
