package rediscache

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // ConnectionURL is in the format "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`             // RetryAttempts is the number of attempts to connect.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`            // RetryInterval is the wait between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`          // ConnectTimeout bounds the whole connect loop.
	PreferenceTTL  time.Duration `env:"REDIS_PREFERENCE_TTL" envDefault:"10m"`           // PreferenceTTL is how long cached preference rows live.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"notifications:prefs:"`
}
