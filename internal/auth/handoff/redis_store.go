package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"identity-service/internal/account"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed handoff store. Entries expire after
// ttl if the issuance phase never runs.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "handoff:",
		ttl:    ttl,
	}
}

// record is the stored form. The password hash never leaves the database.
type record struct {
	ID               uuid.UUID    `json:"id"`
	Username         string       `json:"username"`
	Email            string       `json:"email,omitempty"`
	Role             account.Role `json:"role"`
	LinkedProvider   string       `json:"linked_provider,omitempty"`
	LinkedExternalID string       `json:"linked_external_id,omitempty"`
	FirstName        string       `json:"first_name,omitempty"`
	LastName         string       `json:"last_name,omitempty"`
}

func (r *RedisStore) key(attemptID string) string {
	return r.prefix + attemptID
}

func (r *RedisStore) Put(ctx context.Context, attemptID string, acc *account.Account) error {
	if attemptID == "" {
		return ErrNoAttempt
	}
	if acc == nil {
		return fmt.Errorf("handoff: nil account")
	}

	data, err := json.Marshal(record{
		ID:               acc.ID,
		Username:         acc.Username,
		Email:            acc.Email,
		Role:             acc.Role,
		LinkedProvider:   acc.LinkedProvider,
		LinkedExternalID: acc.LinkedExternalID,
		FirstName:        acc.FirstName,
		LastName:         acc.LastName,
	})
	if err != nil {
		return fmt.Errorf("handoff: failed to marshal: %w", err)
	}

	return r.client.Set(ctx, r.key(attemptID), data, r.ttl).Err()
}

// TakeAndClear reads and deletes the entry in one GETDEL round trip, so
// two concurrent takes for the same attempt cannot both observe it.
func (r *RedisStore) TakeAndClear(ctx context.Context, attemptID string) (*account.Account, bool, error) {
	if attemptID == "" {
		return nil, false, ErrNoAttempt
	}

	val, err := r.client.GetDel(ctx, r.key(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // not found
	}
	if err != nil {
		return nil, false, err
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, false, fmt.Errorf("handoff: failed to unmarshal: %w", err)
	}

	return &account.Account{
		ID:               rec.ID,
		Username:         rec.Username,
		Email:            rec.Email,
		Role:             rec.Role,
		LinkedProvider:   rec.LinkedProvider,
		LinkedExternalID: rec.LinkedExternalID,
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
	}, true, nil
}
