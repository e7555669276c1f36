// Package pgstore stores notification deliveries, in-app rows and
// preferences in PostgreSQL through pgx/v5.
//
// Connect opens a pool with retries, Migrate applies the bundled goose
// migrations and CheckSchema verifies that the configured tables exist:
//
//	pool, err := pgstore.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := pgstore.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    return err
//	}
//	store := pgstore.New(pool)
//
// Table names are configurable with WithTables. The preference table must
// carry a unique constraint on (user_id, notification_type, channel) for the
// upsert to work.
package pgstore
