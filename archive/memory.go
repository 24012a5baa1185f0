package archive

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

// Save stores a copy of report, replacing any report with the same id.
func (s *MemoryStore) Save(_ context.Context, report *Report) error {
	if err := validate(report); err != nil {
		return err
	}
	cp := *report
	s.mu.Lock()
	s.reports[report.SessionID] = &cp
	s.mu.Unlock()
	return nil
}

// Load returns a copy of the report with the given id.
func (s *MemoryStore) Load(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *r
	return &cp, nil
}

// List returns the newest reports first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Report, error) {
	s.mu.RLock()
	out := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := listLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
