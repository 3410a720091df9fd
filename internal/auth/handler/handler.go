package handler

import (
	"net/http"

	"identity-service/internal/account"
	"identity-service/internal/auth"
	"identity-service/internal/auth/callback"
	"identity-service/internal/auth/credentials"
	"identity-service/internal/auth/provider"
	"identity-service/internal/auth/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	providers     *provider.Registry
	orchestrator  *callback.Orchestrator
	credentials   *credentials.Service
	tokens        *token.Issuer
	accounts      account.Store
	basePath      string
	secureCookies bool
	log           *zap.Logger
}

type Options struct {
	// BasePath is the prefix the routes are mounted under, e.g. "/api".
	BasePath string

	// SecureCookies marks the state and PKCE cookies Secure.
	SecureCookies bool

	Logger *zap.Logger
}

func NewHandler(
	registry *provider.Registry,
	orchestrator *callback.Orchestrator,
	credentialService *credentials.Service,
	tokens *token.Issuer,
	accounts account.Store,
	opts Options,
) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		providers:     registry,
		orchestrator:  orchestrator,
		credentials:   credentialService,
		tokens:        tokens,
		accounts:      accounts,
		basePath:      opts.BasePath,
		secureCookies: opts.SecureCookies,
		log:           log.With(zap.String("component", "handler")),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, requireAuth gin.HandlerFunc) {
	r.GET("/oauth2/authorization/:provider", h.login)
	r.GET("/login/oauth2/code/:provider", h.callback)
	r.GET("/oauth2/login/:provider", h.loginInfo)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", requireAuth, h.Me)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		h.fail(c, callback.NewAttempt("", providerName), err)
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		h.fail(c, callback.NewAttempt("", providerName), err)
		return
	}
	_, codeChallenge := h.generatePKCE(c)

	authURL := p.AuthCodeURL(state, codeChallenge)
	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")
	attempt := callback.NewAttempt(c.Query("state"), providerName)

	p, err := h.providers.Get(providerName)
	if err != nil {
		h.fail(c, attempt, err)
		return
	}

	valid := validateState(c)
	codeVerifier := getPKCEVerifier(c)
	h.clearOAuthCookies(c)

	if !valid {
		h.fail(c, attempt, auth.ErrInvalidState)
		return
	}

	// CASE 1: provider reported an error (denied consent, etc.)
	if errParam := c.Query("error"); errParam != "" {
		h.fail(c, attempt, &auth.ProviderExchangeError{
			Provider: auth.Provider(p.Name()),
			Reason:   errParam,
		})
		return
	}

	// CASE 2: normal callback
	if codeVerifier == "" {
		h.fail(c, attempt, auth.ErrInvalidState)
		return
	}

	claims, err := p.Exchange(c.Request.Context(), c.Query("code"), codeVerifier)
	if err != nil {
		h.fail(c, attempt, err)
		return
	}

	out := h.orchestrator.Complete(c.Request.Context(), attempt, claims)
	c.Redirect(http.StatusFound, out.RedirectURL)
}

func (h *Handler) loginInfo(c *gin.Context) {
	providerName := c.Param("provider")

	c.JSON(http.StatusOK, gin.H{
		"message":     "Redirecting to " + providerName + " for authentication",
		"redirectUrl": h.basePath + "/oauth2/authorization/" + providerName,
	})
}

func (h *Handler) fail(c *gin.Context, attempt *callback.Attempt, err error) {
	out := h.orchestrator.Fail(attempt, err)
	c.Redirect(http.StatusFound, out.RedirectURL)
}
