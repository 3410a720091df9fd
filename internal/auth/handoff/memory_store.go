package handoff

import (
	"context"
	"sync"
	"time"

	"identity-service/internal/account"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	acc       *account.Account
	expiresAt time.Time
}

// MemoryStore keeps handoffs in process. Only valid while both phases of
// an attempt hit the same instance.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Put(_ context.Context, attemptID string, acc *account.Account) error {
	if attemptID == "" {
		return ErrNoAttempt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.purgeLocked(now)
	m.entries[attemptID] = memoryEntry{
		acc:       acc.Clone(),
		expiresAt: now.Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) TakeAndClear(_ context.Context, attemptID string) (*account.Account, bool, error) {
	if attemptID == "" {
		return nil, false, ErrNoAttempt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[attemptID]
	if !ok {
		return nil, false, nil
	}
	delete(m.entries, attemptID)

	if !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.acc, true, nil
}

// Len returns the number of entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) purgeLocked(now time.Time) {
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}
