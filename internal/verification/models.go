package verification

import (
	"golang.org/x/crypto/blake2b"

	id "certo/pkg/domain"
)

// Record is the auditable outcome of one disclosure query, keyed by
// (Patient, ID). The boolean verdict is stored only as ResultHash so the
// record itself discloses nothing beyond "a query happened".
type Record struct {
	Patient             id.Identity          `json:"patient"`
	Verifier            id.Identity          `json:"verifier"`
	ID                  id.VerificationID    `json:"id"`
	MatchedCertificates []id.CertificateID   `json:"matched_certificates,omitempty"`
	DisclosureLevel     int                  `json:"disclosure_level"`
	Purpose             string               `json:"purpose"`
	ResultHash          []byte               `json:"result_hash"`
	Clock               uint64               `json:"clock"`
}

// HashResult encodes a verdict as a one-byte blake2b digest input. Both
// outcomes hash to fixed, well-known values; the point is to keep the
// plaintext boolean out of the stored record, not to hide it from the
// verifier who received it.
func HashResult(passed bool) []byte {
	b := byte(0)
	if passed {
		b = 1
	}
	sum := blake2b.Sum256([]byte{b})
	return sum[:]
}
