package account

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store with the same uniqueness rules as the
// postgres schema. Used for development without DATABASE_DSN and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*Account),
		now:      time.Now,
	}
}

func (s *MemoryStore) FindByProviderAndExternalID(_ context.Context, provider, externalID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.LinkedProvider == provider && a.LinkedExternalID == externalID {
			return a.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.byEmailLocked(email); a != nil {
		return a.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.byUsernameLocked(username); a != nil {
		return a.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUsernameLocked(username) != nil, nil
}

func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byEmailLocked(email) != nil, nil
}

func (s *MemoryStore) Save(_ context.Context, in *Account) (*Account, error) {
	a := in.Clone()
	if err := validate(a); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	if a.IsNew() {
		if err := s.checkUniqueLocked(a, uuid.Nil); err != nil {
			return nil, err
		}
		a.ID = uuid.New()
		a.CreatedAt = now
		a.UpdatedAt = now
		s.accounts[a.ID] = a
		return a.Clone(), nil
	}

	existing, ok := s.accounts[a.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if existing.Username != a.Username {
		return nil, fmt.Errorf("%w: username is immutable", ErrInvalid)
	}
	if err := s.checkUniqueLocked(a, a.ID); err != nil {
		return nil, err
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = now
	s.accounts[a.ID] = a
	return a.Clone(), nil
}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *MemoryStore) checkUniqueLocked(a *Account, self uuid.UUID) error {
	for id, other := range s.accounts {
		if id == self {
			continue
		}
		if other.Username == a.Username {
			return &ConflictError{Constraint: ConstraintUsername}
		}
		if a.Email != "" && strings.EqualFold(other.Email, a.Email) {
			return &ConflictError{Constraint: ConstraintEmail}
		}
		if a.IsLinked() &&
			other.LinkedProvider == a.LinkedProvider &&
			other.LinkedExternalID == a.LinkedExternalID {
			return &ConflictError{Constraint: ConstraintLink}
		}
	}
	return nil
}

func (s *MemoryStore) byEmailLocked(email string) *Account {
	if email == "" {
		return nil
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) byUsernameLocked(username string) *Account {
	for _, a := range s.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}
