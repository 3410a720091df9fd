package account

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("account not found")

	// ErrConflict marks a storage-level uniqueness violation. Callers
	// resolving federated identities treat it as retryable.
	ErrConflict = errors.New("account uniqueness conflict")

	ErrInvalid = errors.New("account invalid")
)

// Constraint names reported by ConflictError.
const (
	ConstraintUsername = "username"
	ConstraintEmail    = "email"
	ConstraintLink     = "provider_link"
)

// ConflictError carries the violated constraint. It matches ErrConflict.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("account uniqueness conflict on %s: %v", e.Constraint, e.Err)
	}
	return "account uniqueness conflict on " + e.Constraint
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
