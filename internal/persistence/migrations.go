package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// The postgres backend needs a single table; the schema ships embedded so a
// fresh database bootstraps without external migration files.
const collectionsSchema = `
CREATE TABLE IF NOT EXISTS collections (
    name        text PRIMARY KEY,
    data        jsonb NOT NULL,
    updated_at  timestamptz NOT NULL DEFAULT now()
)`

// RunMigrations ensures the collections table exists.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	if _, err := pool.Exec(ctx, collectionsSchema); err != nil {
		return fmt.Errorf("apply collections schema: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
