package patient

import (
	"context"
	"sync"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in process memory behind a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.Identity]Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.Identity]Profile)}
}

func (s *InMemoryStore) Save(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, patient id.Identity) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profile, ok := s.profiles[patient]; ok {
		copied := profile
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
