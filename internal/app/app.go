package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"identity-service/internal/config"
	"identity-service/internal/logger"
	"identity-service/internal/telemetry"
)

type App struct {
	httpServer *http.Server
	cleanup    func(context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	shutdownTracing, err := telemetry.Init(ctx, logger.L(), telemetry.Config{
		ServiceName: "identity-service",
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	router, err := setupHTTP(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		cleanup: func(ctx context.Context) error {
			return errors.Join(infra.Close(), shutdownTracing(ctx))
		},
	}, nil
}

// Run blocks until the server stops. A graceful shutdown is not an error.
func (a *App) Run() error {
	err := a.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.cleanup != nil {
		return a.cleanup(ctx)
	}
	return nil
}
