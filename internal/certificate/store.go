package certificate

import (
	"context"

	id "certo/pkg/domain"
)

// Store persists certificates and recalls. Lookups return
// sentinel.ErrNotFound when absent.
//
// FindByVaccineHash is the secondary index the verification engine scans:
// (patient, vaccine hash) -> certificates, in issuance order. It replaces the
// fixed-width id probe the original system shipped with.
type Store interface {
	SaveCertificate(ctx context.Context, c *Certificate) error
	FindCertificate(ctx context.Context, patient id.Identity, cert id.CertificateID) (*Certificate, error)
	FindByVaccineHash(ctx context.Context, patient id.Identity, vaccineHash []byte) ([]*Certificate, error)

	SaveRecall(ctx context.Context, r *Recall) error
	FindRecall(ctx context.Context, recall id.RecallID) (*Recall, error)
	ActiveRecallForHash(ctx context.Context, vaccineHash []byte) (*Recall, error)
	ListActiveRecalls(ctx context.Context) ([]*Recall, error)
}
