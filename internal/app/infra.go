package app

import (
	"context"
	"errors"

	"identity-service/internal/account"
	"identity-service/internal/auth/handoff"
	"identity-service/internal/config"
	"identity-service/internal/db"
	"identity-service/internal/logger"
	"identity-service/internal/redis"
)

type Infra struct {
	DB    *db.DB        // nil without DATABASE_DSN
	Redis *redis.Client // nil unless HANDOFF_BACKEND=redis

	Accounts account.Store
	Handoffs handoff.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.DatabaseDSN == "" {
		logger.Warn("DATABASE_DSN not set, using in-memory account store", nil)
		infra.Accounts = account.NewMemoryStore()
	} else {
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}

		if err := db.Migrate(ctx, database); err != nil {
			_ = database.Close()
			return nil, err
		}

		logger.Info("database ready", nil)

		infra.DB = database
		infra.Accounts = account.NewPostgresStore(database.DB)
	}

	switch cfg.HandoffBackend {
	case "redis":
		redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}

		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

		infra.Redis = redisClient
		infra.Handoffs = handoff.NewRedisStore(redisClient, cfg.HandoffTTL)
	default:
		infra.Handoffs = handoff.NewMemoryStore(cfg.HandoffTTL)
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	return errors.Join(errs...)
}
