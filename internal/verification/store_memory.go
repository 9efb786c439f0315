package verification

import (
	"context"
	"sync"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

type recordKey struct {
	patient id.Identity
	record  id.VerificationID
}

// InMemoryStore keeps verification records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]Record)}
}

func (s *InMemoryStore) SaveRecord(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{r.Patient, r.ID}] = cloneRecord(r)
	return nil
}

func (s *InMemoryStore) FindRecord(_ context.Context, patient id.Identity, record id.VerificationID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[recordKey{patient, record}]; ok {
		copied := cloneRecord(&r)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func cloneRecord(r *Record) Record {
	copied := *r
	copied.MatchedCertificates = append([]id.CertificateID(nil), r.MatchedCertificates...)
	copied.ResultHash = append([]byte(nil), r.ResultHash...)
	return copied
}
