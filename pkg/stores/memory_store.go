package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	runs     map[string]*RunRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*SessionRecord),
		runs:     make(map[string]*RunRecord),
	}
}

// Init is a no-op for the in-memory store.
func (s *MemoryStore) Init(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// SaveSession inserts or replaces a session record.
func (s *MemoryStore) SaveSession(ctx context.Context, record *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.sessions[record.ID] = &copied
	return nil
}

// GetSession retrieves a session by ID.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	copied := *record
	return &copied, nil
}

// ListSessions lists sessions ordered by most recently updated.
func (s *MemoryStore) ListSessions(ctx context.Context, limit, offset int) ([]*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*SessionRecord, 0, len(s.sessions))
	for _, record := range s.sessions {
		copied := *record
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	return paginate(all, limit, offset), nil
}

// DeleteSession deletes a session and its runs.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s not found", id)
	}
	delete(s.sessions, id)
	for runID, run := range s.runs {
		if run.SessionID == id {
			delete(s.runs, runID)
		}
	}
	return nil
}

// CreateRun inserts a run record.
func (s *MemoryStore) CreateRun(ctx context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[record.ID]; ok {
		return fmt.Errorf("run %s already exists", record.ID)
	}
	copied := *record
	s.runs[record.ID] = &copied
	return nil
}

// GetRun retrieves a run by ID.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	copied := *record
	return &copied, nil
}

// ListRunsBySession lists a session's runs newest-first.
func (s *MemoryStore) ListRunsBySession(ctx context.Context, sessionID string, limit, offset int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*RunRecord
	for _, record := range s.runs {
		if record.SessionID == sessionID {
			copied := *record
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})
	return paginate(matched, limit, offset), nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
