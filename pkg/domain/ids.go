// Package domain defines the typed identifiers shared across the registry.
//
// Principals are opaque strings handed to us by the ledger substrate; record
// identifiers are monotonic counters allocated by the registry aggregate.
// Typed wrappers keep a CertificateID from ever being passed where a
// RequestID is expected.
package domain

import (
	"strconv"

	dErrors "certo/pkg/domain-errors"
)

// Identity is an opaque principal issued by the substrate. It identifies
// patients, providers, reviewers and the system owner alike.
type Identity string

func (i Identity) String() string { return string(i) }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i == "" }

// maxIdentityLen bounds principal length at trust boundaries.
const maxIdentityLen = 128

// ParseIdentity validates a raw principal string from an untrusted source.
func ParseIdentity(raw string) (Identity, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must not be empty")
	}
	if len(raw) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity exceeds maximum length")
	}
	return Identity(raw), nil
}

// Ledger-assigned record identifiers. Zero is never a valid id: counters
// start at 1 and only advance.
type (
	CertificateID  uint64
	RequestID      uint64
	RecallID       uint64
	VerificationID uint64
	AuditID        uint64
)

func (id CertificateID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id RequestID) String() string      { return strconv.FormatUint(uint64(id), 10) }
func (id RecallID) String() string       { return strconv.FormatUint(uint64(id), 10) }
func (id VerificationID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id AuditID) String() string        { return strconv.FormatUint(uint64(id), 10) }

func (id CertificateID) IsZero() bool  { return id == 0 }
func (id RequestID) IsZero() bool      { return id == 0 }
func (id RecallID) IsZero() bool       { return id == 0 }
func (id VerificationID) IsZero() bool { return id == 0 }
func (id AuditID) IsZero() bool        { return id == 0 }

func parseCounter(raw, what string) (uint64, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" must be positive")
	}
	return n, nil
}

// ParseCertificateID validates a certificate id from an untrusted source.
func ParseCertificateID(raw string) (CertificateID, error) {
	n, err := parseCounter(raw, "certificate id")
	return CertificateID(n), err
}

// ParseRequestID validates a verification request id from an untrusted source.
func ParseRequestID(raw string) (RequestID, error) {
	n, err := parseCounter(raw, "request id")
	return RequestID(n), err
}

// ParseRecallID validates a recall id from an untrusted source.
func ParseRecallID(raw string) (RecallID, error) {
	n, err := parseCounter(raw, "recall id")
	return RecallID(n), err
}

// ParseVerificationID validates a verification record id from an untrusted source.
func ParseVerificationID(raw string) (VerificationID, error) {
	n, err := parseCounter(raw, "verification id")
	return VerificationID(n), err
}
