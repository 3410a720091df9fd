package google

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"identity-service/internal/auth"
	"identity-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientID = "test-client"

type fakeGoogle struct {
	server     *httptest.Server
	key        *rsa.PrivateKey
	signingKey *rsa.PrivateKey
	userInfo   map[string]any
	idClaims   jwt.MapClaims
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeGoogle{
		key:        key,
		signingKey: key,
		userInfo: map[string]any{
			"sub":     "g-1",
			"name":    "Jane Doe",
			"picture": "https://example.com/jane.png",
		},
		idClaims: jwt.MapClaims{
			"sub":            "g-1",
			"email":          "jane@example.com",
			"email_verified": true,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.token(t))
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, f.userInfo)
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		pub := f.key.PublicKey
		writeJSON(w, map[string]any{"keys": []map[string]any{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) token(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
			return
		}
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))

		claims := jwt.MapClaims{
			"iss": f.server.URL,
			"aud": clientID,
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		for k, v := range f.idClaims {
			claims[k] = v
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		idToken, err := tok.SignedString(f.signingKey)
		require.NoError(t, err)

		writeJSON(w, map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGoogle) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), config.ProviderConfig{
		ClientID:         clientID,
		ClientSecret:     "secret",
		AuthorizationURI: f.server.URL + "/auth",
		TokenURI:         f.server.URL + "/token",
		UserInfoURI:      f.server.URL + "/userinfo",
		RedirectURI:      "http://localhost:8082/api/login/oauth2/code/google",
		Scopes:           []string{"openid", "profile", "email"},
		Issuer:           f.server.URL,
		JWKSURI:          f.server.URL + "/jwks",
	}, nil)
	require.NoError(t, err)
	return p
}

func TestExchange_MergesUserInfoAndIDToken(t *testing.T) {
	f := newFakeGoogle(t)
	p := f.provider(t)

	claims, err := p.Exchange(context.Background(), "good-code", "the-verifier")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", claims["name"])
	assert.Equal(t, "jane@example.com", claims["email"])

	identity, err := auth.Normalize(p.Name(), claims)
	require.NoError(t, err)
	assert.Equal(t, "g-1", identity.ExternalID)
	assert.Equal(t, "jane@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Jane Doe", identity.DisplayName)
}

func TestExchange_Errors(t *testing.T) {
	t.Run("token endpoint rejects code", func(t *testing.T) {
		f := newFakeGoogle(t)

		_, err := f.provider(t).Exchange(context.Background(), "bad-code", "the-verifier")

		var exchange *auth.ProviderExchangeError
		require.ErrorAs(t, err, &exchange)
		assert.Equal(t, auth.ProviderGoogle, exchange.Provider)
		assert.Equal(t, "invalid_grant", exchange.Reason)
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFakeGoogle(t)

		_, err := f.provider(t).Exchange(context.Background(), "", "the-verifier")
		assert.ErrorIs(t, err, auth.ErrProviderExchange)
	})

	t.Run("id token signed by unknown key", func(t *testing.T) {
		f := newFakeGoogle(t)
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		f.signingKey = other

		_, err = f.provider(t).Exchange(context.Background(), "good-code", "the-verifier")

		var exchange *auth.ProviderExchangeError
		require.ErrorAs(t, err, &exchange)
		assert.Equal(t, "invalid_id_token", exchange.Reason)
	})

	t.Run("userinfo subject differs from id token", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.userInfo["sub"] = "someone-else"

		_, err := f.provider(t).Exchange(context.Background(), "good-code", "the-verifier")

		var exchange *auth.ProviderExchangeError
		require.ErrorAs(t, err, &exchange)
		assert.Equal(t, "subject_mismatch", exchange.Reason)
	})
}

func TestAuthCodeURL(t *testing.T) {
	f := newFakeGoogle(t)

	raw := f.provider(t).AuthCodeURL("state-1", "challenge-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/auth", u.Path)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "challenge-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, clientID, q.Get("client_id"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{ClientID: "id"}, nil)
	assert.Error(t, err)
}
