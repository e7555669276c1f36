package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

//go:embed migrations/*.sql
var migrations embed.FS

// logger is satisfied by *slog.Logger.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies the bundled migrations. They create the tables under their
// default names; deployments using custom names manage the schema themselves
// and rely on CheckSchema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	// goose needs database/sql; the wrapper shares the pool's connections.
	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close database connection", "error", err)
		}
	}(db)

	goose.SetBaseFS(migrations)
	goose.SetLogger(newSlogAdapter(log))
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// CheckSchema verifies that every configured table exists.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool, tables notifications.TableNames) error {
	tables = tables.WithDefaults()
	for _, name := range []string{tables.Deliveries, tables.InApp, tables.Preferences} {
		var found *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1::text)::text", name).Scan(&found); err != nil {
			return fmt.Errorf("check table %q: %w", name, err)
		}
		if found == nil {
			return fmt.Errorf("%w: %q", notifications.ErrMissingTable, name)
		}
	}
	return nil
}

// migrateSlogAdapter routes goose's Printf-style output to the structured logger.
type migrateSlogAdapter struct {
	log logger
}

func newSlogAdapter(log logger) goose.Logger {
	return &migrateSlogAdapter{log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
