package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Envelope is what a channel handler receives for one attempt.
type Envelope struct {
	UserID         string
	Type           string
	Content        Content
	RecipientEmail string
}

// Receipt is returned by a handler on success.
type Receipt struct {
	ExternalID string
}

// Handler performs the actual send on a channel. Any returned error is
// recorded as a failed attempt and retried within the channel's budget.
type Handler interface {
	Send(ctx context.Context, env Envelope) (Receipt, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) (Receipt, error)

func (f HandlerFunc) Send(ctx context.Context, env Envelope) (Receipt, error) {
	return f(ctx, env)
}

// InitContext is handed to a channel when its handler is first needed.
type InitContext struct {
	Store  Store
	Tables TableNames
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Channel is a pluggable delivery channel.
type Channel interface {
	Name() ChannelName

	// Retries is the number of attempts allowed beyond the first.
	Retries() int

	// Init builds the channel's handler. It is called at most once per
	// successful initialization for the lifetime of the registry.
	Init(ic InitContext) (Handler, error)
}

// lazyHandler initializes a channel handler on first use. The per-channel
// mutex lets slow initializations on one channel proceed without blocking others.
type lazyHandler struct {
	mu      sync.Mutex
	channel Channel
	handler Handler
}

func (l *lazyHandler) get(ic InitContext) (Handler, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler != nil {
		return l.handler, nil
	}

	h, err := l.channel.Init(ic)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrChannelInit, l.channel.Name(), err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w %q: nil handler", ErrChannelInit, l.channel.Name())
	}
	l.handler = h
	return h, nil
}
