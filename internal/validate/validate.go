// Package validate holds the pure predicates gating every public operation.
//
// Each predicate is total: it never fails, it only answers. Services call
// them before touching any state so a rejected operation leaves nothing
// behind.
package validate

import (
	id "certo/pkg/domain"

	"certo/internal/policy"
)

// Principal reports whether an actor-supplied identity is acceptable: set,
// and never the registry's own system identity.
func Principal(actor, system id.Identity) bool {
	return !actor.IsZero() && actor != system
}

// DisclosureLevel reports whether a privacy tier is in [1,4].
func DisclosureLevel(level int) bool {
	return level >= 1 && level <= policy.MaxAuthorityLevel
}

// AuthorityLevel reports whether a provider authority level is in [1,4].
func AuthorityLevel(level int) bool {
	return level >= 1 && level <= policy.MaxAuthorityLevel
}

// PrivacyMask reports whether a 4-bit preference/disclosure mask is in [0,15].
func PrivacyMask(mask int) bool {
	return mask >= 0 && mask <= 15
}

// ValidityPeriod reports whether a certificate lifetime is inside policy bounds.
func ValidityPeriod(period uint64) bool {
	return period >= policy.MinValidityPeriod && period <= policy.MaxValidityPeriod
}

// ReputationScore reports whether a reputation value is in [0,1000].
func ReputationScore(score int) bool {
	return score >= 0 && score <= policy.MaxReputation
}

// QuorumThreshold reports whether a reviewer quorum is in its admin bounds.
func QuorumThreshold(threshold int) bool {
	return threshold >= policy.MinQuorum && threshold <= policy.MaxQuorum
}

// Hash reports whether a credential/commitment hash has the required length.
func Hash(h []byte) bool {
	return len(h) == policy.HashLen
}

// NonEmptyHash reports whether evidence material is present at all.
func NonEmptyHash(h []byte) bool {
	return len(h) > 0
}

// BoundedString reports whether s is non-empty and within max bytes.
func BoundedString(s string, max int) bool {
	return len(s) > 0 && len(s) <= max
}
