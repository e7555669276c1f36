package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Backoff is an ordered list of delays applied between attempts by attempt
// index. Indexes past the end reuse the last value.
type Backoff []time.Duration

// DefaultBackoff is 1s, 5s, 15s, 30s, 60s.
var DefaultBackoff = Backoff{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// Delay returns the wait after the attempt with the given zero-based index.
func (b Backoff) Delay(attempt int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	return b[min(max(attempt, 0), len(b)-1)]
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Observer is notified about attempt outcomes. Implementations must be safe
// for concurrent use.
type Observer interface {
	AttemptFinished(channel ChannelName, status Status, took time.Duration)
	DeliveryExhausted(channel ChannelName)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(ChannelName, Status, time.Duration) {}
func (nopObserver) DeliveryExhausted(ChannelName)                      {}

// Job is one (notification, channel) delivery.
type Job struct {
	UserID         string
	Type           string
	Channel        ChannelName
	Content        Content
	RecipientEmail string
	Retries        int
	Handler        Handler
}

// Engine drives the attempt loop for a single channel, persisting one row per
// attempt and linking each retry to the attempt before it.
type Engine struct {
	store    DeliveryStore
	backoff  Backoff
	sleep    Sleeper
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineBackoff overrides the delay schedule. An empty list disables waiting.
func WithEngineBackoff(b Backoff) EngineOption {
	return func(e *Engine) { e.backoff = b }
}

func WithEngineSleeper(s Sleeper) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

func WithEngineObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithEngineIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates a delivery engine writing attempt rows to store.
func NewEngine(store DeliveryStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		backoff:  DefaultBackoff,
		sleep:    SleepContext,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver runs up to job.Retries+1 attempts and returns the row of the
// successful attempt. When every attempt fails it returns a *DeliveryError
// pointing at the last attempt row.
func (e *Engine) Deliver(ctx context.Context, job Job) (Delivery, error) {
	snapshot, err := json.Marshal(job.Content)
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: encode content: %w", ErrInvalidData, err)
	}

	maxAttempts := max(job.Retries, 0) + 1
	log := e.logger.With(
		logger.Component("delivery"),
		logger.NotificationType(job.Type),
		logger.Channel(string(job.Channel)),
		logger.UserID(job.UserID),
	)

	var (
		previousID string
		lastErr    error
	)

	for attempt := range maxAttempts {
		retriesLeft := maxAttempts - attempt - 1
		now := e.now()
		row := Delivery{
			ID:             e.newID(),
			UserID:         job.UserID,
			Type:           job.Type,
			Channel:        job.Channel,
			Status:         StatusPending,
			Content:        snapshot,
			RetryOf:        previousID,
			RetriesLeft:    retriesLeft,
			RecipientEmail: job.RecipientEmail,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := e.store.CreateDelivery(ctx, row); err != nil {
			return Delivery{}, fmt.Errorf("%w on channel %q: %w", ErrRecordAttempt, job.Channel, err)
		}

		log.LogAttrs(ctx, slog.LevelDebug, "delivery attempt started",
			logger.DeliveryID(row.ID),
			logger.Attempt(attempt, retriesLeft),
		)

		started := time.Now()
		receipt, sendErr := job.Handler.Send(ctx, Envelope{
			UserID:         job.UserID,
			Type:           job.Type,
			Content:        job.Content,
			RecipientEmail: job.RecipientEmail,
		})
		took := time.Since(started)

		// The outcome is recorded even if the caller gave up meanwhile.
		recordCtx := context.WithoutCancel(ctx)

		if sendErr == nil {
			row.Status = StatusSent
			row.ExternalID = receipt.ExternalID
			row.UpdatedAt = e.now()
			if err := e.store.UpdateDelivery(recordCtx, row.ID, DeliveryUpdate{
				Status:     StatusSent,
				ExternalID: receipt.ExternalID,
				UpdatedAt:  row.UpdatedAt,
			}); err != nil {
				// The send went out; retrying would duplicate it. The row stays pending.
				log.LogAttrs(ctx, slog.LevelError, "failed to record sent attempt",
					logger.DeliveryID(row.ID),
					logger.Error(err),
				)
			}
			e.observer.AttemptFinished(job.Channel, StatusSent, took)
			return row, nil
		}

		lastErr = sendErr
		previousID = row.ID
		if err := e.store.UpdateDelivery(recordCtx, row.ID, DeliveryUpdate{
			Status:    StatusFailed,
			Error:     sendErr.Error(),
			UpdatedAt: e.now(),
		}); err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to record failed attempt",
				logger.DeliveryID(row.ID),
				logger.Error(err),
			)
		}
		e.observer.AttemptFinished(job.Channel, StatusFailed, took)

		if retriesLeft == 0 {
			break
		}

		delay := e.backoff.Delay(attempt)
		log.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed, retrying",
			logger.DeliveryID(row.ID),
			logger.Attempt(attempt, retriesLeft),
			logger.Duration(delay),
			logger.Error(sendErr),
		)
		if err := e.sleep(ctx, delay); err != nil {
			e.observer.DeliveryExhausted(job.Channel)
			return Delivery{}, &DeliveryError{
				DeliveryID: previousID,
				Channel:    job.Channel,
				Attempts:   attempt + 1,
				Err:        fmt.Errorf("%w; retry aborted: %w", sendErr, err),
			}
		}
	}

	e.observer.DeliveryExhausted(job.Channel)
	log.LogAttrs(ctx, slog.LevelError, "delivery exhausted",
		logger.DeliveryID(previousID),
		logger.Error(lastErr),
	)
	return Delivery{}, &DeliveryError{
		DeliveryID: previousID,
		Channel:    job.Channel,
		Attempts:   maxAttempts,
		Err:        lastErr,
	}
}
