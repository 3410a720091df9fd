package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var _ Store = (*PostgresStore)(nil)

const uniqueViolation = "23505"

const accountColumns = `
	id, username, email, password_hash, role,
	linked_provider, linked_external_id,
	first_name, last_name, created_at, updated_at`

// PostgresStore persists accounts in the accounts table. Uniqueness is
// enforced by the schema; violations surface as *ConflictError.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByProviderAndExternalID(ctx context.Context, provider, externalID string) (*Account, error) {
	return s.queryOne(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE linked_provider = $1
		  AND linked_external_id = $2
	`, provider, externalID)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return s.queryOne(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1
	`, username)
}

func (s *PostgresStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)
	`, username).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1))
	`, email).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) Save(ctx context.Context, in *Account) (*Account, error) {
	a := in.Clone()
	if err := validate(a); err != nil {
		return nil, err
	}

	if a.IsNew() {
		out, err := s.queryOne(ctx, `
			INSERT INTO accounts (
				username, email, password_hash, role,
				linked_provider, linked_external_id,
				first_name, last_name
			)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4,
			        NULLIF($5, ''), NULLIF($6, ''),
			        NULLIF($7, ''), NULLIF($8, ''))
			RETURNING `+accountColumns,
			a.Username, a.Email, a.PasswordHash, string(a.Role),
			a.LinkedProvider, a.LinkedExternalID,
			a.FirstName, a.LastName,
		)
		return out, translate(err)
	}

	// username is not in the SET list: it is immutable once allocated.
	out, err := s.queryOne(ctx, `
		UPDATE accounts
		SET email = NULLIF($2, ''),
		    password_hash = NULLIF($3, ''),
		    role = $4,
		    linked_provider = NULLIF($5, ''),
		    linked_external_id = NULLIF($6, ''),
		    first_name = NULLIF($7, ''),
		    last_name = NULLIF($8, ''),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns,
		a.ID, a.Email, a.PasswordHash, string(a.Role),
		a.LinkedProvider, a.LinkedExternalID,
		a.FirstName, a.LastName,
	)
	return out, translate(err)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*Account, error) {
	var (
		a                                    Account
		email, hash, provider, extID, fn, ln sql.NullString
		role                                 string
	)

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Username, &email, &hash, &role,
		&provider, &extID,
		&fn, &ln, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Email = email.String
	a.PasswordHash = hash.String
	a.Role = Role(role)
	a.LinkedProvider = provider.String
	a.LinkedExternalID = extID.String
	a.FirstName = fn.String
	a.LastName = ln.String
	return &a, nil
}

// translate maps postgres unique violations to *ConflictError and leaves
// every other error unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	constraint := pqErr.Constraint
	switch pqErr.Constraint {
	case "accounts_username_unique":
		constraint = ConstraintUsername
	case "accounts_email_lower_unique":
		constraint = ConstraintEmail
	case "accounts_provider_link_unique":
		constraint = ConstraintLink
	}
	return &ConflictError{Constraint: constraint, Err: fmt.Errorf("postgres: %s", pqErr.Message)}
}
