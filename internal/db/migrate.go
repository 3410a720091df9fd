package db

import (
	"context"
	"embed"
	"fmt"

	"identity-service/internal/logger"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "schema_migrations"

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *DB) error {
	goose.SetBaseFS(migrations)
	goose.SetTableName(migrationsTable)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through the service logger.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...any) {
	logger.Error("migration failed", map[string]any{"detail": fmt.Sprintf(format, v...)})
}

func (gooseLogger) Printf(format string, v ...any) {
	logger.Info("migration", map[string]any{"detail": fmt.Sprintf(format, v...)})
}
