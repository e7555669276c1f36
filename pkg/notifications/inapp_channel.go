package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type inAppChannel struct {
	feed *Feed
}

// InAppChannelOption configures the in-app channel.
type InAppChannelOption func(*inAppChannel)

// WithFeed publishes every stored row to feed subscribers.
func WithFeed(feed *Feed) InAppChannelOption {
	return func(c *inAppChannel) { c.feed = feed }
}

// InAppChannel returns the in-app channel plugin. It writes to the registry's
// store and never retries: a local write failure is not transient.
func InAppChannel(opts ...InAppChannelOption) Channel {
	c := &inAppChannel{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *inAppChannel) Name() ChannelName { return ChannelInApp }
func (c *inAppChannel) Retries() int      { return 0 }

func (c *inAppChannel) Init(ic InitContext) (Handler, error) {
	if ic.Store == nil {
		return nil, fmt.Errorf("%w: in-app channel needs the %q table", ErrMissingTable, ic.Tables.InApp)
	}
	h := &inAppHandler{store: ic.Store, feed: c.feed, now: ic.Now, newID: ic.NewID}
	if h.now == nil {
		h.now = time.Now
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	return h, nil
}

type inAppHandler struct {
	store InboxStore
	feed  *Feed
	now   func() time.Time
	newID func() string
}

func (h *inAppHandler) Send(ctx context.Context, env Envelope) (Receipt, error) {
	// No inbox to write to.
	if env.UserID == "" {
		return Receipt{}, nil
	}

	content, ok := env.Content.(InAppContent)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: in-app channel got %T content", ErrInvalidData, env.Content)
	}

	row := InAppNotification{
		ID:        h.newID(),
		UserID:    env.UserID,
		Type:      env.Type,
		Title:     content.Title,
		Body:      content.Body,
		URL:       content.URL,
		Icon:      content.Icon,
		CreatedAt: h.now(),
	}
	if err := h.store.CreateInApp(ctx, row); err != nil {
		return Receipt{}, err
	}

	if h.feed != nil {
		h.feed.Publish(row)
	}

	return Receipt{ExternalID: row.ID}, nil
}
