package token

import (
	"errors"
	"fmt"
	"time"

	"identity-service/internal/account"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoAccount    = errors.New("token: account without username")
	ErrInvalidToken = errors.New("token: invalid token")
)

// Claims is the payload of an issued session token. Subject is the
// account's username, which stays stable across provider relinks.
type Claims struct {
	AccountID string       `json:"uid"`
	Email     string       `json:"email,omitempty"`
	Role      account.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 session tokens. It is stateless and does not consult
// the account store.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) Issue(acc *account.Account) (string, error) {
	if acc == nil || acc.Username == "" {
		return "", ErrNoAccount
	}

	now := i.now()
	claims := Claims{
		AccountID: acc.ID.String(),
		Email:     acc.Email,
		Role:      acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.Username,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
