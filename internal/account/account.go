package account

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account is the canonical local account. Username is immutable once
// allocated; the (LinkedProvider, LinkedExternalID) pair is unique when set.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string // empty when unknown
	PasswordHash string // empty for federation-only accounts
	Role         Role

	LinkedProvider   string
	LinkedExternalID string

	FirstName string
	LastName  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNew reports whether the account has not been persisted yet.
func (a *Account) IsNew() bool {
	return a.ID == uuid.Nil
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

func (a *Account) IsLinked() bool {
	return a.LinkedProvider != "" && a.LinkedExternalID != ""
}

// Link attaches the account to a provider identity, replacing any
// previous linkage.
func (a *Account) Link(provider, externalID string) {
	a.LinkedProvider = provider
	a.LinkedExternalID = externalID
}

// Clone returns a copy safe to hand out of a store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
