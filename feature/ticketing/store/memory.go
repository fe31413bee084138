package store

import (
	"context"
	"sync"
	"time"

	"ticketing-sync/feature/ticketing/models"
)

// MemoryStore keeps snapshots in process memory. It backs one-shot CLI
// passes where no database is configured, and tests.
type MemoryStore struct {
	mu         sync.Mutex
	wrappers   map[string]map[string]models.EventSerieWrapper
	watermarks map[string]time.Time
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wrappers:   make(map[string]map[string]models.EventSerieWrapper),
		watermarks: make(map[string]time.Time),
	}
}

func (m *MemoryStore) LoadWrappers(_ context.Context, organizationID string) (map[string]models.EventSerieWrapper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]models.EventSerieWrapper, len(m.wrappers[organizationID]))
	for id, w := range m.wrappers[organizationID] {
		out[id] = w
	}
	return out, nil
}

func (m *MemoryStore) SaveWrapper(_ context.Context, organizationID string, wrapper models.EventSerieWrapper) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wrappers[organizationID] == nil {
		m.wrappers[organizationID] = make(map[string]models.EventSerieWrapper)
	}
	m.wrappers[organizationID][wrapper.Serie.InternalTicketingSystemID] = wrapper
	return nil
}

func (m *MemoryStore) LastSyncAt(_ context.Context, organizationID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[organizationID], nil
}

func (m *MemoryStore) SetLastSyncAt(_ context.Context, organizationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[organizationID] = at
	return nil
}
