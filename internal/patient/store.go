package patient

import (
	"context"

	id "certo/pkg/domain"
)

// Store persists patient profiles. Find returns sentinel.ErrNotFound when the
// profile does not exist.
type Store interface {
	Save(ctx context.Context, profile *Profile) error
	Find(ctx context.Context, patient id.Identity) (*Profile, error)
}
