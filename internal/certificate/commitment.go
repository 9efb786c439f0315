package certificate

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"

	id "certo/pkg/domain"
)

// Commitments bind (patient, vaccine hash, salt) into an opaque digest stored
// on the certificate. This is a plain hash commitment, NOT a zero-knowledge
// proof: a verifier who already knows the preimage learns nothing new, and
// there is no soundness against one.

// Commit computes the privacy commitment for a certificate.
func Commit(patient id.Identity, vaccineHash, salt []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(patient.String()))
	h.Write(vaccineHash)
	h.Write(salt)
	return h.Sum(nil)
}

// VerifyCommitment reports whether the stored commitment opens to the given
// preimage. Constant-time comparison.
func VerifyCommitment(commitment []byte, patient id.Identity, vaccineHash, salt []byte) bool {
	expected := Commit(patient, vaccineHash, salt)
	return subtle.ConstantTimeCompare(commitment, expected) == 1
}

// NewSalt draws a fresh 32-byte commitment salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("draw commitment salt: %w", err)
	}
	return salt, nil
}
