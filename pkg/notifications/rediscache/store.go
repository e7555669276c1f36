package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const (
	DefaultTTL       = 10 * time.Minute
	DefaultKeyPrefix = "notifications:prefs:"
)

// Store wraps a notifications.Store with a read-through Redis cache for
// preference rows. Everything else passes straight to the wrapped store.
// Redis failures never fail a request: reads fall back to the wrapped store.
type Store struct {
	notifications.Store

	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// Option configures the cache.
type Option func(*Store)

// WithTTL sets how long cached rows live. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key prefix; the user id is appended to it.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig converts cfg into options.
func FromConfig(cfg Config) []Option {
	return []Option{WithTTL(cfg.PreferenceTTL), WithKeyPrefix(cfg.KeyPrefix)}
}

// Wrap returns next with preference reads cached in client.
func Wrap(next notifications.Store, client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		Store:  next,
		client: client,
		ttl:    DefaultTTL,
		prefix: DefaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(userID string) string { return s.prefix + userID }

func (s *Store) ListPreferences(ctx context.Context, userID string) ([]notifications.Preference, error) {
	key := s.key(userID)

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var prefs []notifications.Preference
		if err := json.Unmarshal(raw, &prefs); err == nil {
			return prefs, nil
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "discarding corrupt cached preferences",
			logger.Component("rediscache"),
			logger.UserID(userID),
		)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "preference cache read failed",
			logger.Component("rediscache"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return s.Store.ListPreferences(ctx, userID)
	}

	prefs, err := s.Store.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = []notifications.Preference{}
	}

	encoded, err := json.Marshal(prefs)
	if err == nil {
		err = s.client.Set(ctx, key, encoded, s.ttl).Err()
	}
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "preference cache write failed",
			logger.Component("rediscache"),
			logger.UserID(userID),
			logger.Error(err),
		)
	}
	return prefs, nil
}

// UpsertPreference writes through and drops the user's cached rows.
func (s *Store) UpsertPreference(ctx context.Context, p notifications.Preference) error {
	if err := s.Store.UpsertPreference(ctx, p); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(p.UserID)).Err(); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "preference cache invalidation failed",
			logger.Component("rediscache"),
			logger.UserID(p.UserID),
			logger.Error(err),
		)
	}
	return nil
}
