// Command notifyd serves the notifications API: inbox, preferences, the live
// inbox stream, and an internal endpoint that triggers notifications.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/internal/config"
	"github.com/dmitrymomot/notifykit/internal/server"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongostore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/prommetrics"
	"github.com/dmitrymomot/notifykit/pkg/notifications/rediscache"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifyd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
		logger.WithContextExtractors(requestID),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	sender, err := newEmailSender(ctx, cfg.EmailDriver)
	if err != nil {
		return err
	}

	metrics := prommetrics.New(true)
	feed := notifications.NewFeed(cfg.FeedBuffer)
	cat := newCatalog(cfg.AppName)

	reg, err := notifications.New(backend.store,
		[]notifications.Channel{
			notifications.EmailChannel(emailSendFunc(sender),
				notifications.WithEmailRetries(cfg.Notifications.EmailRetries)),
			notifications.InAppChannel(notifications.WithFeed(feed)),
		},
		cat.definitions,
		append(cfg.Notifications.Options(),
			notifications.WithLogger(log),
			notifications.WithObserver(metrics),
		)...,
	)
	if err != nil {
		return err
	}

	identify := func(r *http.Request) string { return r.Header.Get(cfg.UserIDHeader) }
	routes := server.Routes{
		Notifications: notifications.NewHTTPHandler(reg, identify, notifications.WithHTTPLogger(log)),
		Stream:        server.NewStreamHandler(feed, reg, identify, log),
		Metrics:       metrics,
		Checks:        backend.checks,
		Logger:        log,
	}
	if cfg.SendAPIToken != "" {
		routes.Send = sendHandler(reg, cat, cfg.SendAPIToken, log)
	}

	srv := server.NewFromConfig(cfg.HTTP,
		server.WithLogger(log),
		server.WithOnShutdown(feed.Close),
	)
	return srv.Run(ctx, server.NewRouter(routes))
}

func requestID(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	return logger.RequestID(id), id != ""
}

// emailSendFunc adapts an email transport to the email channel contract.
func emailSendFunc(s email.Sender) notifications.EmailSendFunc {
	return func(ctx context.Context, msg notifications.EmailMessage) (string, error) {
		return s.SendEmail(ctx, email.Message{
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
			Tag:     msg.Tag,
		})
	}
}

func newEmailSender(ctx context.Context, driver string) (email.Sender, error) {
	switch driver {
	case config.EmailPostmark:
		c, err := config.Parse[email.PostmarkConfig]()
		if err != nil {
			return nil, err
		}
		return email.NewPostmarkSender(c)
	case config.EmailSES:
		c, err := config.Parse[email.SESConfig]()
		if err != nil {
			return nil, err
		}
		return email.NewSESSender(ctx, c)
	case config.EmailDev:
		c, err := config.Parse[email.DevConfig]()
		if err != nil {
			return nil, err
		}
		return email.NewDevSender(c), nil
	}
	return nil, fmt.Errorf("%w: email driver %q", config.ErrInvalidConfig, driver)
}

type backend struct {
	store   notifications.Store
	checks  []server.Check
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	b := &backend{}
	tables := cfg.Notifications.Tables()

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCfg, err := config.Parse[pgstore.Config]()
		if err != nil {
			return nil, err
		}
		pool, err := pgstore.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if pgCfg.AutoMigrate {
			if err := pgstore.Migrate(ctx, pool, pgCfg, log); err != nil {
				b.close()
				return nil, err
			}
		}
		if err := pgstore.CheckSchema(ctx, pool, tables); err != nil {
			b.close()
			return nil, err
		}
		b.store = pgstore.New(pool, pgstore.WithTables(tables))
		b.checks = append(b.checks, server.Check{Name: "postgres", Check: pgstore.Healthcheck(pool)})

	case config.StoreMongo:
		mCfg, err := config.Parse[mongostore.Config]()
		if err != nil {
			return nil, err
		}
		db, err := mongostore.ConnectDatabase(ctx, mCfg)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		b.closers = append(b.closers, func() {
			if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
				log.LogAttrs(ctx, slog.LevelError, "mongo disconnect failed", logger.Error(err))
			}
		})
		s := mongostore.New(db, tables)
		if err := s.EnsureIndexes(ctx); err != nil {
			b.close()
			return nil, err
		}
		b.store = s
		b.checks = append(b.checks, server.Check{Name: "mongo", Check: mongostore.Healthcheck(client)})

	case config.StoreMemory:
		b.store = notifications.NewMemoryStore()

	default:
		return nil, fmt.Errorf("%w: store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}

	if cfg.RedisEnabled {
		rCfg, err := config.Parse[rediscache.Config]()
		if err != nil {
			b.close()
			return nil, err
		}
		client, err := rediscache.Connect(ctx, rCfg)
		if err != nil {
			b.close()
			return nil, errors.Join(errors.New("redis preference cache"), err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.store = rediscache.Wrap(b.store, client, append(rediscache.FromConfig(rCfg), rediscache.WithLogger(log))...)
		b.checks = append(b.checks, server.Check{Name: "redis", Check: rediscache.Healthcheck(client)})
	}

	return b, nil
}
