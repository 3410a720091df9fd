package token

import (
	"testing"
	"time"

	"identity-service/internal/account"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer(secret, "identity-service", time.Hour)

	acc := &account.Account{
		ID:               uuid.New(),
		Username:         "jdoe",
		Email:            "jdoe@example.com",
		Role:             account.RoleUser,
		LinkedProvider:   "google",
		LinkedExternalID: "g-1",
	}

	raw, err := iss.Issue(acc)
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", claims.Subject, "subject is the username, not the provider id")
	assert.Equal(t, acc.ID.String(), claims.AccountID)
	assert.Equal(t, "jdoe@example.com", claims.Email)
	assert.Equal(t, account.RoleUser, claims.Role)
	assert.Equal(t, "identity-service", claims.Issuer)
}

func TestIssuer_RejectsMissingUsername(t *testing.T) {
	iss := NewIssuer(secret, "identity-service", time.Hour)

	_, err := iss.Issue(nil)
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = iss.Issue(&account.Account{})
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestIssuer_Parse(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	iss := NewIssuer(secret, "identity-service", time.Hour)
	iss.now = func() time.Time { return now }

	valid, err := iss.Issue(&account.Account{Username: "jdoe", Role: account.RoleUser})
	require.NoError(t, err)

	other := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), "identity-service", time.Hour)
	other.now = iss.now
	forged, err := other.Issue(&account.Account{Username: "jdoe"})
	require.NoError(t, err)

	wrongIssuer := NewIssuer(secret, "someone-else", time.Hour)
	wrongIssuer.now = iss.now
	foreign, err := wrongIssuer.Issue(&account.Account{Username: "jdoe"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "jdoe",
		"iss": "identity-service",
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		advance time.Duration
		wantErr bool
	}{
		{name: "valid", raw: valid},
		{name: "expired", raw: valid, advance: 2 * time.Hour, wantErr: true},
		{name: "wrong secret", raw: forged, wantErr: true},
		{name: "wrong issuer", raw: foreign, wantErr: true},
		{name: "alg none", raw: none, wantErr: true},
		{name: "garbage", raw: "not.a.jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := now.Add(tt.advance)
			iss.now = func() time.Time { return at }

			claims, err := iss.Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "jdoe", claims.Subject)
		})
	}
}
