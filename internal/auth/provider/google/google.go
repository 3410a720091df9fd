package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"identity-service/internal/auth"
	"identity-service/internal/auth/provider"
	"identity-service/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const providerName = auth.ProviderGoogle

var _ provider.OAuthProvider = (*Provider)(nil)

// Provider implements OAuth + OIDC authentication against Google.
// It returns the userinfo claims merged with the verified id_token claims.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	userInfoURI string
	log         *zap.Logger
}

// New builds the provider from static endpoints. Signing keys are fetched
// lazily from cfg.JWKSURI using ctx, which must outlive the provider.
func New(
	ctx context.Context,
	cfg config.ProviderConfig,
	log *zap.Logger,
) (*Provider, error) {

	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, errors.New("google oauth config missing required fields")
	}
	if cfg.Issuer == "" || cfg.JWKSURI == "" {
		return nil, errors.New("google oidc config missing issuer or jwks uri")
	}
	if log == nil {
		log = zap.NewNop()
	}

	keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURI)
	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID: cfg.ClientID,
	})

	return &Provider{
		oauthConfig: provider.OAuth2Config(cfg),
		verifier:    verifier,
		userInfoURI: cfg.UserInfoURI,
		log:         log.With(zap.String("provider", providerName.String())),
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName.String()
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return provider.AuthCodeURL(p.oauthConfig, state, codeChallenge)
}

func (p *Provider) Exchange(
	ctx context.Context,
	code string,
	codeVerifier string,
) (map[string]any, error) {

	token, err := provider.ExchangeCode(ctx, providerName, p.oauthConfig, code, codeVerifier)
	if err != nil {
		return nil, err
	}

	claims := map[string]any{}

	if p.userInfoURI != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURI, nil)
		if err != nil {
			return nil, provider.ExchangeError(providerName, err)
		}
		claims, err = provider.FetchClaims(p.oauthConfig.Client(ctx, token), providerName, req)
		if err != nil {
			return nil, err
		}
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken != "" {
		idClaims, err := p.verify(ctx, rawIDToken)
		if err != nil {
			return nil, err
		}

		if sub := auth.ClaimString(claims, "sub"); sub != "" && sub != auth.ClaimString(idClaims, "sub") {
			return nil, &auth.ProviderExchangeError{
				Provider: providerName,
				Reason:   "subject_mismatch",
			}
		}

		// Signed claims win over userinfo.
		for k, v := range idClaims {
			claims[k] = v
		}
	}

	if len(claims) == 0 {
		return nil, &auth.ProviderExchangeError{
			Provider: providerName,
			Reason:   "no_claims",
		}
	}

	p.log.Info("google claims loaded", zap.Bool("id_token_verified", rawIDToken != ""))

	return claims, nil
}

func (p *Provider) verify(ctx context.Context, rawIDToken string) (map[string]any, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, &auth.ProviderExchangeError{
			Provider: providerName,
			Reason:   "invalid_id_token",
			Err:      err,
		}
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, &auth.ProviderExchangeError{
			Provider: providerName,
			Reason:   "invalid_id_token",
			Err:      fmt.Errorf("parse claims: %w", err),
		}
	}
	return claims, nil
}
