package account

import (
	"context"
	"fmt"
)

// Store is the persistence collaborator for accounts. Implementations
// enforce uniqueness of username, email and provider linkage and report
// violations as *ConflictError.
type Store interface {
	FindByProviderAndExternalID(ctx context.Context, provider, externalID string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Save inserts a new account (zero ID) or updates an existing one and
	// returns the persisted record.
	Save(ctx context.Context, a *Account) (*Account, error)
}

func validate(a *Account) error {
	if a == nil {
		return ErrInvalid
	}
	if a.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalid)
	}
	if !a.HasPassword() && !a.IsLinked() {
		return fmt.Errorf("%w: account needs a password or a linked provider", ErrInvalid)
	}
	if (a.LinkedProvider == "") != (a.LinkedExternalID == "") {
		return fmt.Errorf("%w: provider linkage must be set as a pair", ErrInvalid)
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	return nil
}
