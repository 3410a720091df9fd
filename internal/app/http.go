package app

import (
	"context"
	"net/http"

	"identity-service/internal/auth/callback"
	"identity-service/internal/auth/credentials"
	"identity-service/internal/auth/handler"
	"identity-service/internal/auth/provider"
	"identity-service/internal/auth/provider/google"
	"identity-service/internal/auth/provider/yandex"
	"identity-service/internal/auth/resolver"
	"identity-service/internal/auth/token"
	"identity-service/internal/config"
	"identity-service/internal/logger"
	"identity-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const apiBasePath = "/api"

func setupHTTP(ctx context.Context, cfg config.Config, infra *Infra) (*gin.Engine, error) {
	log := logger.L()

	// ----------------------------
	// Dependencies
	// ----------------------------

	identityResolver := resolver.New(
		infra.Accounts,
		resolver.WithLogger(log),
		resolver.WithMaxAttempts(cfg.ResolveMaxAttempts),
	)

	tokenIssuer := token.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)

	orchestrator := callback.NewOrchestrator(
		identityResolver,
		infra.Handoffs,
		tokenIssuer,
		cfg.FrontendBaseURL,
		log,
	)

	googleProvider, err := google.New(ctx, cfg.Google, log)
	if err != nil {
		return nil, err
	}

	yandexProvider, err := yandex.New(cfg.Yandex, log)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry(
		googleProvider,
		yandexProvider,
	)

	authHandler := handler.NewHandler(
		registry,
		orchestrator,
		credentials.NewService(infra.Accounts, log),
		tokenIssuer,
		infra.Accounts,
		handler.Options{
			BasePath:      apiBasePath,
			SecureCookies: cfg.IsProduction(),
			Logger:        log,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(tokenIssuer)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ----------------------------
	// API Routes
	// ----------------------------

	api := router.Group(apiBasePath)
	authHandler.RegisterRoutes(api, middleware.GinRequireAuth(authMiddleware))

	for _, route := range router.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	return router, nil
}
