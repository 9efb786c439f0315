package audit

import (
	"context"
	"log/slog"

	"certo/internal/registry"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

// Publisher appends audit entries on behalf of the domain services. It
// allocates audit ids from the registry aggregate so the trail shares the
// ledger's monotonic id space.
//
// Audit writes are fail-closed: a state-changing operation that cannot be
// audited must not report success.
type Publisher struct {
	store    Store
	registry *registry.Registry
	logger   *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher creates the trail publisher.
func NewPublisher(store Store, reg *registry.Registry, opts ...Option) *Publisher {
	p := &Publisher{store: store, registry: reg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit assigns the next audit id and appends the entry.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.Subject.IsZero() || entry.Action == "" {
		return dErrors.New(dErrors.CodeInternal, "audit entry requires subject and action")
	}
	if entry.ImpactLevel < 1 || entry.ImpactLevel > 4 {
		entry.ImpactLevel = 1
	}
	entry.ID = p.registry.NextAuditID()
	if err := p.store.Append(ctx, entry); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit append failed",
				"action", entry.Action,
				"subject", entry.Subject,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit persistence failed")
	}
	return nil
}

// List returns the trail for one subject.
func (p *Publisher) List(ctx context.Context, subject id.Identity) ([]Entry, error) {
	return p.store.ListBySubject(ctx, subject)
}
