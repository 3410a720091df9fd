package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ProviderConfig is the client registration of one OAuth2 provider.
type ProviderConfig struct {
	ClientID          string   `env:"CLIENT_ID"`
	ClientSecret      string   `env:"CLIENT_SECRET"`
	AuthorizationURI  string   `env:"AUTHORIZATION_URI"`
	TokenURI          string   `env:"TOKEN_URI"`
	UserInfoURI       string   `env:"USER_INFO_URI"`
	RedirectURI       string   `env:"REDIRECT_URI"`
	Scopes            []string `env:"SCOPES" envSeparator:","`
	UserNameAttribute string   `env:"USER_NAME_ATTRIBUTE"`

	// OIDC only.
	Issuer  string `env:"ISSUER"`
	JWKSURI string `env:"JWKS_URI"`
}

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8082"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	FrontendBaseURL string   `env:"FRONTEND_BASE_URL" envDefault:"http://localhost:3001"`
	CORSOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	HandoffBackend string        `env:"HANDOFF_BACKEND" envDefault:"memory"`
	HandoffTTL     time.Duration `env:"HANDOFF_TTL" envDefault:"5m"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"identity-service"`

	ResolveMaxAttempts int `env:"RESOLVE_MAX_ATTEMPTS" envDefault:"5"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Google ProviderConfig `envPrefix:"GOOGLE_"`
	Yandex ProviderConfig `envPrefix:"YANDEX_"`
}

const minJWTSecretLen = 32

var (
	ErrMissingCredential = errors.New("config: missing provider credential")
	ErrWeakJWTSecret     = errors.New("config: JWT_SECRET must be at least 32 bytes")
	ErrHandoffBackend    = errors.New("config: HANDOFF_BACKEND must be memory or redis")
)

var googleDefaults = ProviderConfig{
	AuthorizationURI:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURI:          "https://oauth2.googleapis.com/token",
	UserInfoURI:       "https://www.googleapis.com/oauth2/v3/userinfo",
	RedirectURI:       "http://localhost:8082/api/login/oauth2/code/google",
	Scopes:            []string{"openid", "profile", "email"},
	UserNameAttribute: "sub",
	Issuer:            "https://accounts.google.com",
	JWKSURI:           "https://www.googleapis.com/oauth2/v3/certs",
}

var yandexDefaults = ProviderConfig{
	AuthorizationURI:  "https://oauth.yandex.ru/authorize",
	TokenURI:          "https://oauth.yandex.ru/token",
	UserInfoURI:       "https://login.yandex.ru/info",
	RedirectURI:       "http://localhost:8082/api/login/oauth2/code/yandex",
	Scopes:            []string{"login:info", "login:email"},
	UserNameAttribute: "id",
}

// Load reads an optional .env file, parses the environment and validates
// the result. Any missing or placeholder provider credential is an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.Google = withDefaults(cfg.Google, googleDefaults)
	cfg.Yandex = withDefaults(cfg.Yandex, yandexDefaults)
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendBaseURL}
	}
	cfg.FrontendBaseURL = strings.TrimRight(cfg.FrontendBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	}
	return false
}

func (c Config) Validate() error {
	var errs []error

	for name, p := range map[string]ProviderConfig{"GOOGLE": c.Google, "YANDEX": c.Yandex} {
		if isPlaceholder(p.ClientID) {
			errs = append(errs, fmt.Errorf("%w: %s_CLIENT_ID", ErrMissingCredential, name))
		}
		if isPlaceholder(p.ClientSecret) {
			errs = append(errs, fmt.Errorf("%w: %s_CLIENT_SECRET", ErrMissingCredential, name))
		}
	}

	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, ErrWeakJWTSecret)
	}

	switch c.HandoffBackend {
	case "memory", "redis":
	default:
		errs = append(errs, ErrHandoffBackend)
	}

	return errors.Join(errs...)
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "" ||
		strings.HasPrefix(v, "your-") ||
		v == "changeme" ||
		v == "change-me"
}

func withDefaults(p, d ProviderConfig) ProviderConfig {
	if p.AuthorizationURI == "" {
		p.AuthorizationURI = d.AuthorizationURI
	}
	if p.TokenURI == "" {
		p.TokenURI = d.TokenURI
	}
	if p.UserInfoURI == "" {
		p.UserInfoURI = d.UserInfoURI
	}
	if p.RedirectURI == "" {
		p.RedirectURI = d.RedirectURI
	}
	if len(p.Scopes) == 0 {
		p.Scopes = d.Scopes
	}
	if p.UserNameAttribute == "" {
		p.UserNameAttribute = d.UserNameAttribute
	}
	if p.Issuer == "" {
		p.Issuer = d.Issuer
	}
	if p.JWKSURI == "" {
		p.JWKSURI = d.JWKSURI
	}
	return p
}
