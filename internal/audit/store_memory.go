package audit

import (
	"context"
	"sync"

	id "certo/pkg/domain"
)

// InMemoryStore keeps the trail in process memory, ordered per subject.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.Identity][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.Identity][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Subject] = append(s.entries[entry.Subject], entry)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject id.Identity) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[subject]...), nil
}
