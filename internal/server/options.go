package server

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*options)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(o *options) { o.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(o *options) { o.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(o *options) { o.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(o *options) { o.idleTimeout = d }
}

// WithShutdownTimeout bounds how long in-flight requests get to finish.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(o *options) { o.shutdownTimeout = d }
}

// WithLogger sets the logger for lifecycle events. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnListening registers a callback invoked with the bound address once the
// listener is open. Tests use it to learn the port chosen for ":0".
func WithOnListening(fn func(addr string)) Option {
	if fn == nil {
		panic("WithOnListening: nil callback")
	}
	return func(o *options) { o.onListening = append(o.onListening, fn) }
}

// WithOnShutdown registers a callback run when shutdown begins. Long-lived
// handlers such as the live feed stream use it to end their responses.
func WithOnShutdown(fn func()) Option {
	if fn == nil {
		panic("WithOnShutdown: nil callback")
	}
	return func(o *options) { o.onShutdown = append(o.onShutdown, fn) }
}
