package memory

import (
	"context"
	"fmt"
	"sync"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/sentinel"
)

// InMemoryStore keeps audit headers and field changes in process memory.
// It backs development runs without a database and most tests.
type InMemoryStore struct {
	mu           sync.RWMutex
	headers      map[int64]audit.Header
	changes      map[int64][]audit.FieldChange
	nextHeaderID int64
	nextChangeID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		headers: make(map[int64]audit.Header),
		changes: make(map[int64][]audit.FieldChange),
	}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = make(map[int64]audit.Header)
	s.changes = make(map[int64][]audit.FieldChange)
}

func (s *InMemoryStore) CreateHeader(_ context.Context, h *audit.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHeaderID++
	h.ID = s.nextHeaderID
	s.headers[h.ID] = *h
	return nil
}

func (s *InMemoryStore) CompleteHeader(_ context.Context, id int64, outcome audit.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return fmt.Errorf("audit header %d: %w", id, sentinel.ErrNotFound)
	}
	outcome.Apply(&h)
	s.headers[id] = h
	return nil
}

func (s *InMemoryStore) AppendChanges(_ context.Context, headerID int64, changes []audit.FieldChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headers[headerID]; !ok {
		return fmt.Errorf("audit header %d: %w", headerID, sentinel.ErrNotFound)
	}
	for _, c := range changes {
		s.nextChangeID++
		c.ID = s.nextChangeID
		c.HeaderID = headerID
		s.changes[headerID] = append(s.changes[headerID], c)
	}
	return nil
}

// Header returns a stored header by id.
func (s *InMemoryStore) Header(_ context.Context, id int64) (audit.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.headers[id]
	if !ok {
		return audit.Header{}, fmt.Errorf("audit header %d: %w", id, sentinel.ErrNotFound)
	}
	return h, nil
}

// ListHeaders returns all headers in creation order.
func (s *InMemoryStore) ListHeaders(_ context.Context) ([]audit.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Header, 0, len(s.headers))
	for id := int64(1); id <= s.nextHeaderID; id++ {
		if h, ok := s.headers[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// ListChanges returns the field changes recorded under a header.
func (s *InMemoryStore) ListChanges(_ context.Context, headerID int64) ([]audit.FieldChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.FieldChange{}, s.changes[headerID]...), nil
}
