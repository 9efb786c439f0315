package patient

import (
	id "certo/pkg/domain"
)

// Profile is a patient's registry record, keyed by principal. Created once by
// the patient; the certificate registry is the only other writer (count and
// timestamp on issuance).
type Profile struct {
	ID                id.Identity `json:"id"`
	TotalCertificates uint64      `json:"total_certificates"`
	// PrivacyPreferences is the patient's default 4-bit disclosure mask.
	PrivacyPreferences int         `json:"privacy_preferences"`
	EmergencyContact   id.Identity `json:"emergency_contact,omitempty"`
	CreatedAt          uint64      `json:"created_at"`
	UpdatedAt          uint64      `json:"updated_at"`
	Verified           bool        `json:"verified"`
}
