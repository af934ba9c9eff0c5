package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations is a process-local RevocationStore.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations creates an empty store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke records tokenID until the given time. Expired entries are swept here.
func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, id)
		}
	}
	m.entries[tokenID] = until
	return nil
}

// IsRevoked reports whether tokenID was revoked and has not expired yet.
func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[tokenID]
	return ok && !m.now().After(exp), nil
}

var _ RevocationStore = (*MemoryRevocations)(nil)
