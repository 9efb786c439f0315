// Package policy centralizes the registry's tunable constants. Values are in
// logical clock units (seconds at the substrate's cadence) unless noted.
package policy

const (
	// MinValidityPeriod is the shortest certificate lifetime (one day).
	MinValidityPeriod uint64 = 86_400
	// MaxValidityPeriod is the longest certificate lifetime (one year).
	MaxValidityPeriod uint64 = 31_536_000
	// RenewalPeriod is how long before credential expiry the renewal window opens.
	RenewalPeriod uint64 = 2_592_000
	// CredentialValidity is a provider license's lifetime from grant or renewal.
	CredentialValidity uint64 = 31_536_000

	// SupervisorLevel is the minimum authority required to review provider
	// verification requests, revoke others' certificates, and initiate recalls.
	SupervisorLevel = 3
	// EndorserLevel is the minimum authority required to endorse a peer.
	EndorserLevel = 2

	// MaxReviewers bounds the reviewer list on a verification request.
	MaxReviewers = 5
	// MaxRequiredHashes bounds a single disclosure query.
	MaxRequiredHashes = 10
	// MaxEvidenceHashes bounds supporting evidence on a verification request.
	MaxEvidenceHashes = 5

	// DefaultQuorum is the reviewer quorum unless the owner reconfigures it.
	DefaultQuorum = 3
	// MinQuorum and MaxQuorum bound the owner-settable threshold.
	MinQuorum = 1
	MaxQuorum = 10

	// MaxReputation caps endorsement-derived reputation.
	MaxReputation = 1000
	// EndorsementShare divides the endorser's reputation into the granted score.
	EndorsementShare = 10
	// EndorsementValidity is how long an endorsement stays active.
	EndorsementValidity uint64 = 31_536_000

	// MaxAuthorityLevel is the top of the provider authority scale.
	MaxAuthorityLevel = 4

	// HashLen is the required length of license, vaccine and commitment hashes.
	HashLen = 32

	// String bounds per field.
	MaxNameLen    = 64
	MaxDetailLen  = 256
	MaxSpecsCount = 10
)
