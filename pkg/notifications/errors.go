package notifications

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Configuration errors. They surface before any channel is attempted.
var (
	ErrUnknownType         = errors.New("notification type is not defined")
	ErrUnknownChannel      = errors.New("channel is not registered")
	ErrDuplicateChannel    = errors.New("channel registered twice")
	ErrDuplicateDefinition = errors.New("notification type defined twice")
	ErrInvalidDefinition   = errors.New("invalid notification definition")
	ErrMissingTable        = errors.New("required table not found")
	ErrNilStore            = errors.New("store is required")
	ErrChannelInit         = errors.New("failed to initialize channel")
	ErrInvalidData         = errors.New("invalid notification data")
)

// Runtime errors.
var (
	ErrRecipientRequired = errors.New("recipient email is required for the email channel")
	ErrUserRequired      = errors.New("user id is required")
	ErrInvalidPreference = errors.New("invalid preference update")
	ErrDeliveryNotFound  = errors.New("delivery attempt not found")
	ErrCorruptChain      = errors.New("delivery chain contains a cycle")
	ErrRecordAttempt     = errors.New("failed to record delivery attempt")
)

// DeliveryError is returned by the delivery engine once every attempt on a
// channel has failed. DeliveryID references the last attempt row.
type DeliveryError struct {
	DeliveryID string
	Channel    ChannelName
	Attempts   int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s) on channel %q: %v", e.Attempts, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SendError aggregates per-channel failures of a single Send call.
// Channels listed in Delivered succeeded; every channel in Failed exhausted its
// retries or could not be recorded.
type SendError struct {
	Type      string
	Delivered []ChannelName
	Failed    map[ChannelName]error
}

func (e *SendError) Error() string {
	channels := e.Channels()
	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = fmt.Sprintf("%s: %v", ch, e.Failed[ch])
	}
	return fmt.Sprintf("failed to deliver notification %q on %d channel(s): %s",
		e.Type, len(channels), strings.Join(parts, "; "))
}

// Unwrap exposes every per-channel cause to errors.Is and errors.As.
func (e *SendError) Unwrap() []error {
	channels := e.Channels()
	errs := make([]error, len(channels))
	for i, ch := range channels {
		errs[i] = e.Failed[ch]
	}
	return errs
}

// Channels returns the failed channel names in sorted order.
func (e *SendError) Channels() []ChannelName {
	out := make([]ChannelName, 0, len(e.Failed))
	for ch := range e.Failed {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}
