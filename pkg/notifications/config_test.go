package notifications_test

import (
	"context"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := env.ParseAs[notifications.Config]()
	require.NoError(t, err)

	assert.Equal(t, []time.Duration(notifications.DefaultBackoff), cfg.Backoff)
	assert.Equal(t, []string{"email", "in-app"}, cfg.DefaultChannels)
	assert.Equal(t, notifications.DefaultEmailRetries, cfg.EmailRetries)
	assert.False(t, cfg.Sequential)
	assert.Equal(t, notifications.DefaultTableNames(), cfg.Tables())
}

func TestConfig_OptionsApplyDefaultChannels(t *testing.T) {
	t.Setenv("NOTIFICATIONS_DEFAULT_CHANNELS", "email")
	t.Setenv("NOTIFICATIONS_BACKOFF", "0s")
	t.Setenv("NOTIFICATIONS_SEQUENTIAL", "true")

	cfg, err := env.ParseAs[notifications.Config]()
	require.NoError(t, err)

	store := notifications.NewMemoryStore()
	reg, err := notifications.New(store,
		[]notifications.Channel{notifications.InAppChannel()},
		[]notifications.Definition{welcomeDef},
		append(cfg.Options(), notifications.WithLogger(logger.Discard()))...,
	)
	require.NoError(t, err)

	// in-app is not a default channel any more, so without a preference row nothing is sent
	require.NoError(t, reg.Send(context.Background(), notifications.SendParams{
		Type:   "welcome",
		UserID: "u1",
		Data:   welcomeData{Name: "Ada"},
	}))
	assert.Empty(t, store.Deliveries())

	require.NoError(t, reg.UpdatePreferences(context.Background(), "u1", []notifications.PreferenceUpdate{
		{NotificationType: "welcome", Channel: notifications.ChannelInApp, Enabled: true},
	}))
	require.NoError(t, reg.Send(context.Background(), notifications.SendParams{
		Type:   "welcome",
		UserID: "u1",
		Data:   welcomeData{Name: "Ada"},
	}))
	assert.Len(t, store.Deliveries(), 1)
}
