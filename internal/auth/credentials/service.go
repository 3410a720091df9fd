package credentials

import (
	"context"
	"errors"
	"strings"

	"identity-service/internal/account"
	"identity-service/internal/auth"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidUsername    = errors.New("username must use only a-z, 0-9, '.', '_' or '-'")
)

// Service implements local username/password accounts. It shares the
// account store with federated login, so a local account can later be
// linked to a provider by email.
type Service struct {
	store account.Store
	log   *zap.Logger
}

func NewService(store account.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		log:   log.With(zap.String("component", "credentials")),
	}
}

func (s *Service) Register(
	ctx context.Context,
	username string,
	password string,
	email string,
) (*account.Account, error) {

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	// 1. Validate input
	if username == "" || auth.SanitizeHandle(username) != username {
		return nil, ErrInvalidUsername
	}

	// 2. Check uniqueness up front for a clear error
	taken, err := s.store.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	if email != "" {
		taken, err = s.store.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	// 3. Hash password
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 4. Insert; a concurrent registration can still win the race
	acc, err := s.store.Save(ctx, &account.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         account.RoleUser,
	})
	if err != nil {
		return nil, conflictError(err)
	}

	s.log.Info("registered local account",
		zap.String("account_id", acc.ID.String()),
		zap.String("username", acc.Username),
	)
	return acc, nil
}

func (s *Service) Authenticate(
	ctx context.Context,
	username string,
	password string,
) (*account.Account, error) {

	// 1. Find account
	acc, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, account.ErrNotFound) {
		// hide whether user exists or not
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// 2. Federation-only accounts have no password
	if !acc.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	// 3. Verify password
	if err := VerifyPassword(acc.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return acc, nil
}

func conflictError(err error) error {
	var conflict *account.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	switch conflict.Constraint {
	case account.ConstraintUsername:
		return ErrUsernameTaken
	case account.ConstraintEmail:
		return ErrEmailTaken
	default:
		return err
	}
}
