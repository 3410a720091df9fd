package provider

import (
	"context"
)

// OAuthProvider defines the contract every external auth provider
// must implement. Implementations return the provider's raw claims only
// and must not perform account creation, linking, or token issuance.
type OAuthProvider interface {
	// Name returns the provider registration key (e.g. "google", "yandex").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// Exchange trades the authorization code for provider credentials and
	// returns the user's claims. Failures are *auth.ProviderExchangeError.
	Exchange(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (map[string]any, error)
}
