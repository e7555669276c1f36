package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/internal/config"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/rediscache"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse[config.Config]()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, config.StoreMemory, cfg.StoreDriver)
	assert.Equal(t, config.EmailDev, cfg.EmailDriver)
	assert.Equal(t, "X-User-ID", cfg.UserIDHeader)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, time.Minute},
		cfg.Notifications.Backoff)
	assert.Equal(t, []string{"email", "in-app"}, cfg.Notifications.DefaultChannels)
	assert.Equal(t, 3, cfg.Notifications.EmailRetries)
	assert.Equal(t, notifications.DefaultTableNames(), cfg.Notifications.Tables())
	require.NoError(t, cfg.Validate())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", config.StorePostgres)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("NOTIFICATIONS_SEQUENTIAL", "true")
	t.Setenv("NOTIFICATIONS_DEFAULT_CHANNELS", "in-app")
	t.Setenv("NOTIFICATIONS_INAPP_TABLE", "inbox")

	cfg, err := config.Parse[config.Config]()
	require.NoError(t, err)

	assert.Equal(t, config.StorePostgres, cfg.StoreDriver)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.Notifications.Sequential)
	assert.Equal(t, []string{"in-app"}, cfg.Notifications.DefaultChannels)
	assert.Equal(t, "inbox", cfg.Notifications.Tables().InApp)
	assert.Equal(t, "notification_delivery", cfg.Notifications.Tables().Deliveries)
}

func TestParse_BackendConfig(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("REDIS_PREFERENCE_TTL", "30s")

	cfg, err := config.Parse[rediscache.Config]()
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.ConnectionURL)
	assert.Equal(t, 30*time.Second, cfg.PreferenceTTL)
}

func TestParse_Error(t *testing.T) {
	t.Setenv("NOTIFICATIONS_EMAIL_RETRIES", "three")

	_, err := config.Parse[config.Config]()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg, err := config.Parse[config.Config]()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown store", func(c *config.Config) { c.StoreDriver = "sqlite" }, "STORE_DRIVER"},
		{"unknown email", func(c *config.Config) { c.EmailDriver = "smtp" }, "EMAIL_DRIVER"},
		{"empty header", func(c *config.Config) { c.UserIDHeader = "" }, "USER_ID_HEADER"},
		{"unknown channel", func(c *config.Config) { c.Notifications.DefaultChannels = []string{"sms"} }, `"sms"`},
		{"negative retries", func(c *config.Config) { c.Notifications.EmailRetries = -1 }, "NOTIFICATIONS_EMAIL_RETRIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, config.Config{AppEnv: "production"}.IsProduction())
	assert.True(t, config.Config{AppEnv: "prod"}.IsProduction())
	assert.False(t, config.Config{AppEnv: "staging"}.IsProduction())
}

// Runs last: godotenv writes into the process environment.
func TestLoad_DotenvFile(t *testing.T) {
	t.Cleanup(func() {
		for _, k := range []string{"APP_NAME", "STORE_DRIVER", "EMAIL_DRIVER", "USER_ID_HEADER", "NOTIFICATIONS_BACKOFF"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := config.Load("testdata/.env.test")
	require.NoError(t, err)
	assert.Equal(t, "notifyd-test", cfg.AppName)
	assert.Equal(t, "X-Account", cfg.UserIDHeader)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, cfg.Notifications.Backoff)
}
