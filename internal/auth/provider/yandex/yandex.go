package yandex

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"identity-service/internal/auth"
	"identity-service/internal/auth/provider"
	"identity-service/internal/config"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const providerName = auth.ProviderYandex

var _ provider.OAuthProvider = (*Provider)(nil)

// Provider implements plain OAuth2 against Yandex ID. Yandex has no
// id_token; claims come from the login.yandex.ru info endpoint.
type Provider struct {
	oauthConfig *oauth2.Config
	userInfoURI string
	httpClient  *http.Client
	log         *zap.Logger
}

func New(cfg config.ProviderConfig, log *zap.Logger) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, errors.New("yandex oauth config missing required fields")
	}
	if cfg.UserInfoURI == "" {
		return nil, errors.New("yandex oauth config missing user info uri")
	}
	if log == nil {
		log = zap.NewNop()
	}

	infoURL, err := url.Parse(cfg.UserInfoURI)
	if err != nil {
		return nil, err
	}
	q := infoURL.Query()
	q.Set("format", "json")
	infoURL.RawQuery = q.Encode()

	return &Provider{
		oauthConfig: provider.OAuth2Config(cfg),
		userInfoURI: infoURL.String(),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.With(zap.String("provider", providerName.String())),
	}, nil
}

func (p *Provider) Name() string {
	return providerName.String()
}

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

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURI, nil)
	if err != nil {
		return nil, provider.ExchangeError(providerName, err)
	}
	// Yandex expects its own scheme, not Bearer.
	req.Header.Set("Authorization", "OAuth "+token.AccessToken)

	claims, err := provider.FetchClaims(p.httpClient, providerName, req)
	if err != nil {
		return nil, err
	}

	p.log.Info("yandex claims loaded", zap.Bool("has_email", auth.ClaimString(claims, "default_email") != ""))

	return claims, nil
}
