package username

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"identity-service/internal/auth"
)

const (
	// fallbackBase is used when neither the handle claim nor the email
	// yields a usable base.
	fallbackBase = "user"

	defaultMaxProbes = 10000
)

var ErrExhausted = errors.New("username: no free candidate")

// Checker reports whether a username is already taken.
type Checker interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// Allocator derives usernames from provider claims and resolves
// collisions by probing base, base1, base2, ... in order. The result is
// free at the instant of the check only; callers inserting it must still
// handle a uniqueness conflict.
type Allocator struct {
	store     Checker
	maxProbes int
}

func New(store Checker) *Allocator {
	return &Allocator{store: store, maxProbes: defaultMaxProbes}
}

func (a *Allocator) Allocate(ctx context.Context, provider auth.Provider, claims map[string]any, email string) (string, error) {
	base := Base(provider, claims, email)

	for n := 0; n < a.maxProbes; n++ {
		candidate := Candidate(base, n)

		taken, err := a.store.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("username: probe %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: base %q", ErrExhausted, base)
}

// Base picks the cleaned base name: the provider's preferred handle claim
// if present, else the email local part, stripped to [a-z0-9._-].
func Base(provider auth.Provider, claims map[string]any, email string) string {
	raw := ""
	if claim := auth.HandleClaim(provider); claim != "" {
		raw = auth.ClaimString(claims, claim)
	}
	if raw == "" {
		raw = auth.EmailLocalPart(email)
	}

	base := auth.SanitizeHandle(raw)
	if !usable(base) {
		base = auth.SanitizeHandle(auth.EmailLocalPart(email))
	}
	if !usable(base) {
		base = fallbackBase
	}
	return base
}

// Candidate returns the n-th probe for base: base itself for n == 0,
// base followed by n otherwise.
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + strconv.Itoa(n)
}

// usable rejects bases made of punctuation only, such as the "." left
// after stripping "Иван.Петров!".
func usable(base string) bool {
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}
