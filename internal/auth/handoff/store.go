package handoff

import (
	"context"
	"errors"

	"identity-service/internal/account"
)

var ErrNoAttempt = errors.New("handoff: missing attempt id")

// Store carries a resolved account from the identity-load phase of one
// authentication attempt to its session-issuance phase.
//
// Entries are keyed by an explicit attempt id that travels with the OAuth
// state, so the two phases may run on any goroutine or instance.
// A value is observable by at most one TakeAndClear.
type Store interface {
	Put(ctx context.Context, attemptID string, acc *account.Account) error
	TakeAndClear(ctx context.Context, attemptID string) (*account.Account, bool, error)
}
