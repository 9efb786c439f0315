package audit

import (
	id "certo/pkg/domain"
)

// Action names a state transition recorded in the trail.
type Action string

const (
	ActionPatientRegistered  Action = "patient_registered"
	ActionPatientVerified    Action = "patient_verified"
	ActionProviderRegistered Action = "provider_registered"
	ActionProviderReviewed   Action = "provider_reviewed"
	ActionProviderVerified   Action = "provider_verified"
	ActionProviderRejected   Action = "provider_rejected"
	ActionProviderSuspended  Action = "provider_suspended"
	ActionProviderReinstated Action = "provider_reinstated"
	ActionProviderRevoked    Action = "provider_revoked"
	ActionCredentialsRenewed Action = "credentials_renewed"
	ActionEndorsed           Action = "provider_endorsed"
	ActionCertificateIssued  Action = "certificate_issued"
	ActionCertificateRevoked Action = "certificate_revoked"
	ActionRecallInitiated    Action = "recall_initiated"
	ActionRecallConfirmed    Action = "recall_confirmed"
	ActionEmergencyDeclared  Action = "emergency_declared"
	ActionEmergencyCleared   Action = "emergency_cleared"
	ActionVerification       Action = "verification_performed"
	ActionQuorumUpdated      Action = "quorum_threshold_updated"
)

// Entry is one append-only audit record, keyed by (Subject, ID). Entries are
// never mutated or deleted after creation.
type Entry struct {
	Subject      id.Identity `json:"subject"`
	ID           id.AuditID  `json:"id"`
	Action       Action      `json:"action"`
	Actor        id.Identity `json:"actor"`
	Clock        uint64      `json:"clock"`
	Details      string      `json:"details,omitempty"`
	EvidenceHash []byte      `json:"evidence_hash,omitempty"`
	// ImpactLevel ranks severity 1-4; 4 is reserved for suspensions and recalls.
	ImpactLevel int `json:"impact_level"`
}
