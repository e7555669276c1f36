// Package config loads notifyd settings from the process environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/notifykit/internal/server"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Email drivers.
const (
	EmailPostmark = "postmark"
	EmailSES      = "ses"
	EmailDev      = "dev"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the top-level process configuration. Backend specific settings
// are loaded separately with Parse once the driver is known, so unused
// backends never require their variables.
type Config struct {
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	AppName      string `env:"APP_NAME" envDefault:"notifyd"`
	StoreDriver  string `env:"STORE_DRIVER" envDefault:"memory"`
	EmailDriver  string `env:"EMAIL_DRIVER" envDefault:"dev"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	UserIDHeader string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	FeedBuffer   int    `env:"FEED_BUFFER" envDefault:"16"`
	SendAPIToken string `env:"SEND_API_TOKEN"` // enables the internal send endpoint when set

	HTTP          server.Config
	Notifications notifications.Config
}

var dotenvOnce sync.Once

// loadDotenv reads the given files, or .env when none are given. A missing
// default .env is not an error; explicitly named files must exist.
func loadDotenv(files ...string) error {
	var err error
	dotenvOnce.Do(func() {
		if len(files) == 0 {
			if _, statErr := os.Stat(".env"); statErr != nil {
				return
			}
		}
		err = godotenv.Load(files...)
	})
	return err
}

// Load reads .env (or files) once, then parses Config and validates it.
func Load(files ...string) (Config, error) {
	if err := loadDotenv(files...); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	cfg, err := Parse[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse parses environment variables into a new T.
func Parse[T any]() (T, error) {
	v, err := env.ParseAs[T]()
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// Validate checks driver names and channel names.
func (c Config) Validate() error {
	if !slices.Contains([]string{StorePostgres, StoreMongo, StoreMemory}, c.StoreDriver) {
		return fmt.Errorf("%w: STORE_DRIVER %q must be one of %s, %s, %s",
			ErrInvalidConfig, c.StoreDriver, StorePostgres, StoreMongo, StoreMemory)
	}
	if !slices.Contains([]string{EmailPostmark, EmailSES, EmailDev}, c.EmailDriver) {
		return fmt.Errorf("%w: EMAIL_DRIVER %q must be one of %s, %s, %s",
			ErrInvalidConfig, c.EmailDriver, EmailPostmark, EmailSES, EmailDev)
	}
	if c.UserIDHeader == "" {
		return fmt.Errorf("%w: USER_ID_HEADER must not be empty", ErrInvalidConfig)
	}
	for _, ch := range c.Notifications.DefaultChannels {
		switch notifications.ChannelName(ch) {
		case notifications.ChannelEmail, notifications.ChannelInApp:
		default:
			return fmt.Errorf("%w: unknown default channel %q", ErrInvalidConfig, ch)
		}
	}
	if c.Notifications.EmailRetries < 0 {
		return fmt.Errorf("%w: NOTIFICATIONS_EMAIL_RETRIES must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether AppEnv names a production deployment.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}
