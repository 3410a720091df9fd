package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"identity-service/internal/auth"
	"identity-service/internal/config"

	"golang.org/x/oauth2"
)

const maxUserInfoBytes = 1 << 20

// OAuth2Config builds the client registration for cfg.
func OAuth2Config(cfg config.ProviderConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthorizationURI,
			TokenURL: cfg.TokenURI,
		},
	}
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func AuthCodeURL(cfg *oauth2.Config, state string, codeChallenge string) string {
	return cfg.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode performs the authorization-code grant with the PKCE verifier.
func ExchangeCode(
	ctx context.Context,
	p auth.Provider,
	cfg *oauth2.Config,
	code string,
	codeVerifier string,
) (*oauth2.Token, error) {

	if code == "" {
		return nil, &auth.ProviderExchangeError{Provider: p, Reason: "missing_code"}
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, ExchangeError(p, err)
	}
	return token, nil
}

// ExchangeError attributes err to provider p, keeping the OAuth error code
// when the token endpoint returned one.
func ExchangeError(p auth.Provider, err error) error {
	e := &auth.ProviderExchangeError{Provider: p, Err: err}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		e.Reason = retrieve.ErrorCode
	}
	return e
}

// FetchClaims performs a userinfo request and decodes the JSON object it
// returns. Numbers are kept as json.Number so numeric ids keep their digits.
func FetchClaims(client *http.Client, p auth.Provider, req *http.Request) (map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, ExchangeError(p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUserInfoBytes))
		return nil, &auth.ProviderExchangeError{
			Provider: p,
			Reason:   fmt.Sprintf("userinfo_http_%d", resp.StatusCode),
		}
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes))
	dec.UseNumber()

	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, &auth.ProviderExchangeError{Provider: p, Reason: "invalid_userinfo", Err: err}
	}
	if claims == nil {
		return nil, &auth.ProviderExchangeError{Provider: p, Reason: "empty_userinfo"}
	}
	return claims, nil
}
