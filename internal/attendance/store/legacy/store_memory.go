package legacy

import (
	"context"
	"iter"
	"sort"
	"sync"

	"nfcattend/internal/attendance/models"
)

// InMemoryStore holds legacy rows for tests and the memory backend.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.LegacyRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.LegacyRecord)}
}

// Insert adds or replaces a legacy row.
func (s *InMemoryStore) Insert(_ context.Context, rec *models.LegacyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.records[rec.ID] = &c
	return nil
}

// All yields a snapshot of every row ordered by id.
func (s *InMemoryStore) All(_ context.Context) iter.Seq2[*models.LegacyRecord, error] {
	return func(yield func(*models.LegacyRecord, error) bool) {
		s.mu.RLock()
		recs := make([]*models.LegacyRecord, 0, len(s.records))
		for _, r := range s.records {
			c := *r
			recs = append(recs, &c)
		}
		s.mu.RUnlock()

		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}
