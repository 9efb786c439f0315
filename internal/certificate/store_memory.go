package certificate

import (
	"context"
	"encoding/hex"
	"sync"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

type certKey struct {
	patient id.Identity
	cert    id.CertificateID
}

type indexKey struct {
	patient id.Identity
	hash    string
}

// InMemoryStore keeps certificates and recalls in process memory, with a
// (patient, vaccine hash) index maintained on save.
type InMemoryStore struct {
	mu      sync.RWMutex
	certs   map[certKey]Certificate
	byHash  map[indexKey][]id.CertificateID
	recalls map[id.RecallID]Recall
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		certs:   make(map[certKey]Certificate),
		byHash:  make(map[indexKey][]id.CertificateID),
		recalls: make(map[id.RecallID]Recall),
	}
}

func (s *InMemoryStore) SaveCertificate(_ context.Context, c *Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := certKey{c.Patient, c.ID}
	_, existed := s.certs[key]
	s.certs[key] = cloneCert(c)
	if !existed {
		ik := indexKey{c.Patient, hex.EncodeToString(c.VaccineHash)}
		s.byHash[ik] = append(s.byHash[ik], c.ID)
	}
	return nil
}

func (s *InMemoryStore) FindCertificate(_ context.Context, patient id.Identity, cert id.CertificateID) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.certs[certKey{patient, cert}]; ok {
		copied := cloneCert(&c)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByVaccineHash(_ context.Context, patient id.Identity, vaccineHash []byte) ([]*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byHash[indexKey{patient, hex.EncodeToString(vaccineHash)}]
	out := make([]*Certificate, 0, len(ids))
	for _, certID := range ids {
		if c, ok := s.certs[certKey{patient, certID}]; ok {
			copied := cloneCert(&c)
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveRecall(_ context.Context, r *Recall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalls[r.ID] = cloneRecall(r)
	return nil
}

func (s *InMemoryStore) FindRecall(_ context.Context, recall id.RecallID) (*Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.recalls[recall]; ok {
		copied := cloneRecall(&r)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ActiveRecallForHash(_ context.Context, vaccineHash []byte) (*Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := hex.EncodeToString(vaccineHash)
	for _, r := range s.recalls {
		if r.Active && hex.EncodeToString(r.VaccineHash) == want {
			copied := cloneRecall(&r)
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListActiveRecalls(_ context.Context) ([]*Recall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Recall
	for _, r := range s.recalls {
		if r.Active {
			copied := cloneRecall(&r)
			out = append(out, &copied)
		}
	}
	return out, nil
}

func cloneCert(c *Certificate) Certificate {
	copied := *c
	copied.VaccineHash = append([]byte(nil), c.VaccineHash...)
	copied.Commitment = append([]byte(nil), c.Commitment...)
	return copied
}

func cloneRecall(r *Recall) Recall {
	copied := *r
	copied.VaccineHash = append([]byte(nil), r.VaccineHash...)
	copied.ConfirmedBy = append([]id.Identity(nil), r.ConfirmedBy...)
	return copied
}
