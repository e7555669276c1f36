// Package rediscache caches per-user notification preferences in Redis.
//
// Send loads a user's preference rows on every non-critical notification;
// wrapping the store keeps that read off the database:
//
//	client, err := rediscache.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := rediscache.Wrap(pgstore.New(pool), client, rediscache.FromConfig(cfg)...)
//
// Rows are cached as JSON under "<prefix><userID>" and dropped on every
// preference upsert.
package rediscache
