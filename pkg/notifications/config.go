package notifications

import "time"

// Config holds the registry settings loaded from the environment.
type Config struct {
	Backoff         []time.Duration `env:"NOTIFICATIONS_BACKOFF" envSeparator:"," envDefault:"1s,5s,15s,30s,60s"` // Backoff is the delay schedule between attempts.
	DefaultChannels []string        `env:"NOTIFICATIONS_DEFAULT_CHANNELS" envSeparator:"," envDefault:"email,in-app"` // DefaultChannels are enabled when no preference row matches.
	EmailRetries    int             `env:"NOTIFICATIONS_EMAIL_RETRIES" envDefault:"3"`                            // EmailRetries is the email channel's retry budget.
	Sequential      bool            `env:"NOTIFICATIONS_SEQUENTIAL" envDefault:"false"`                           // Sequential delivers channels one after another.

	DeliveryTable   string `env:"NOTIFICATIONS_DELIVERY_TABLE" envDefault:"notification_delivery"`
	InAppTable      string `env:"NOTIFICATIONS_INAPP_TABLE" envDefault:"in_app_notification"`
	PreferenceTable string `env:"NOTIFICATIONS_PREFERENCE_TABLE" envDefault:"notification_preference"`
}

// Tables returns the configured table names.
func (c Config) Tables() TableNames {
	return TableNames{
		Deliveries:  c.DeliveryTable,
		InApp:       c.InAppTable,
		Preferences: c.PreferenceTable,
	}.WithDefaults()
}

// Options converts the config into registry options.
func (c Config) Options() []Option {
	channels := make([]ChannelName, len(c.DefaultChannels))
	for i, ch := range c.DefaultChannels {
		channels[i] = ChannelName(ch)
	}

	opts := []Option{
		WithDefaults(Defaults{EnabledChannels: channels}),
		WithTables(c.Tables()),
	}
	if c.Backoff != nil {
		opts = append(opts, WithBackoff(c.Backoff...))
	}
	if c.Sequential {
		opts = append(opts, WithSequentialDelivery())
	}
	return opts
}
