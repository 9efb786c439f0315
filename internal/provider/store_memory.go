package provider

import (
	"context"
	"sync"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

type requestKey struct {
	provider id.Identity
	request  id.RequestID
}

type endorsementKey struct {
	endorser id.Identity
	endorsee id.Identity
}

// InMemoryStore keeps provider state in process memory behind a RWMutex.
type InMemoryStore struct {
	mu           sync.RWMutex
	providers    map[id.Identity]Provider
	requests     map[requestKey]VerificationRequest
	endorsements map[endorsementKey]Endorsement
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		providers:    make(map[id.Identity]Provider),
		requests:     make(map[requestKey]VerificationRequest),
		endorsements: make(map[endorsementKey]Endorsement),
	}
}

func (s *InMemoryStore) SaveProvider(_ context.Context, p *Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = *p
	return nil
}

func (s *InMemoryStore) FindProvider(_ context.Context, provider id.Identity) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.providers[provider]; ok {
		copied := p
		copied.Specializations = append([]string(nil), p.Specializations...)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveRequest(_ context.Context, r *VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	copied.Votes = append([]Vote(nil), r.Votes...)
	s.requests[requestKey{r.Provider, r.ID}] = copied
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, provider id.Identity, request id.RequestID) (*VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.requests[requestKey{provider, request}]; ok {
		copied := r
		copied.Votes = append([]Vote(nil), r.Votes...)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveEndorsement(_ context.Context, e *Endorsement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endorsements[endorsementKey{e.Endorser, e.Endorsee}] = *e
	return nil
}

func (s *InMemoryStore) FindEndorsement(_ context.Context, endorser, endorsee id.Identity) (*Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.endorsements[endorsementKey{endorser, endorsee}]; ok {
		copied := e
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
