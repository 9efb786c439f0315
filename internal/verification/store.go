package verification

import (
	"context"

	id "certo/pkg/domain"
)

// Store persists verification records. Lookups return sentinel.ErrNotFound
// when absent.
type Store interface {
	SaveRecord(ctx context.Context, r *Record) error
	FindRecord(ctx context.Context, patient id.Identity, record id.VerificationID) (*Record, error)
}
