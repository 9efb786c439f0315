package certificate

import (
	id "certo/pkg/domain"
)

// Certificate is one immunity attestation, keyed by (Patient, ID).
type Certificate struct {
	Patient           id.Identity      `json:"patient"`
	ID                id.CertificateID `json:"id"`
	VaccineHash       []byte           `json:"vaccine_hash"`
	Issuer            id.Identity      `json:"issuer"`
	IssuedAt          uint64           `json:"issued_at"`
	ValidUntil        uint64           `json:"valid_until"`
	Commitment        []byte           `json:"commitment"`
	Disclosure        DisclosureSet    `json:"disclosure"`
	Active            bool             `json:"active"`
	EmergencyRevoked  bool             `json:"emergency_revoked"`
	VerificationCount uint64           `json:"verification_count"`
}

// Valid reports whether the certificate is usable at the given clock.
// Expiry is strict: a certificate is invalid at exactly ValidUntil.
func (c *Certificate) Valid(now uint64) bool {
	return c.Active && !c.EmergencyRevoked && c.ValidUntil > now
}

// Recall is an emergency recall of a credential hash. Activating one raises
// the process-wide emergency mode, freezing all new issuance.
type Recall struct {
	ID            id.RecallID   `json:"id"`
	VaccineHash   []byte        `json:"vaccine_hash"`
	Reason        string        `json:"reason"`
	Initiator     id.Identity   `json:"initiator"`
	InitiatedAt   uint64        `json:"initiated_at"`
	Confirmations uint64        `json:"confirmations"`
	ConfirmedBy   []id.Identity `json:"confirmed_by,omitempty"`
	Active        bool          `json:"active"`
}

// HasConfirmed reports whether a provider already confirmed this recall.
func (r *Recall) HasConfirmed(provider id.Identity) bool {
	for _, p := range r.ConfirmedBy {
		if p == provider {
			return true
		}
	}
	return false
}
