package provider

import (
	"context"

	id "certo/pkg/domain"
)

// Store persists providers, verification requests and endorsements. Lookups
// return sentinel.ErrNotFound when absent.
type Store interface {
	SaveProvider(ctx context.Context, p *Provider) error
	FindProvider(ctx context.Context, provider id.Identity) (*Provider, error)

	SaveRequest(ctx context.Context, r *VerificationRequest) error
	FindRequest(ctx context.Context, provider id.Identity, request id.RequestID) (*VerificationRequest, error)

	SaveEndorsement(ctx context.Context, e *Endorsement) error
	FindEndorsement(ctx context.Context, endorser, endorsee id.Identity) (*Endorsement, error)
}
