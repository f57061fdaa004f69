package memory

import (
	"context"
	"sync"

	"github.com/calicogames/lorechat/internal/domain"
)

// QuotaStore keeps quota records in process memory.
type QuotaStore struct {
	mu      sync.RWMutex
	records map[domain.IdentityID]*domain.QuotaRecord
}

func NewQuotaStore() *QuotaStore {
	return &QuotaStore{
		records: make(map[domain.IdentityID]*domain.QuotaRecord),
	}
}

func (s *QuotaStore) GetQuota(ctx context.Context, id domain.IdentityID) (*domain.QuotaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *QuotaStore) SetQuota(ctx context.Context, id domain.IdentityID, rec *domain.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[id] = &cp
	return nil
}
