package audit

import (
	"context"

	id "certo/pkg/domain"
)

// Store is the append-only sink for audit entries. Implementations never
// update or delete rows.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubject(ctx context.Context, subject id.Identity) ([]Entry, error)
}
