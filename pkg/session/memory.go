package session

import (
	"context"
	"sync"

	"github.com/resilix/resilix/pkg/models"
)

// MemoryStore keeps incident state in process memory. Not durable; used for
// local development and as the fallback when the database is unavailable.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.IncidentState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.IncidentState)}
}

// Init is a no-op for the memory backend.
func (s *MemoryStore) Init(ctx context.Context) error {
	return nil
}

// Save stores a deep copy of the state.
func (s *MemoryStore) Save(ctx context.Context, id string, state *models.IncidentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = state.Clone()
	return nil
}

// Get returns a deep copy of the state or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.IncidentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Delete removes the record if present.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// ListItems returns deep copies of all (id, state) pairs.
func (s *MemoryStore) ListItems(ctx context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Item, 0, len(s.sessions))
	for id, state := range s.sessions {
		items = append(items, Item{ID: id, State: state.Clone()})
	}
	return items, nil
}
