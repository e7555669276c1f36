package notifications

import (
	"context"
	"fmt"
	"strings"
)

// EmailMessage is what the email channel hands to the injected transport.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Tag     string
}

// EmailSendFunc transmits one email and returns the provider's message id, if any.
type EmailSendFunc func(ctx context.Context, msg EmailMessage) (externalID string, err error)

// DefaultEmailRetries is the email channel's retry budget beyond the first attempt.
const DefaultEmailRetries = 3

type emailChannel struct {
	send    EmailSendFunc
	retries int
}

// EmailChannelOption configures the email channel.
type EmailChannelOption func(*emailChannel)

// WithEmailRetries overrides the retry budget. Negative values are ignored.
func WithEmailRetries(n int) EmailChannelOption {
	return func(c *emailChannel) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// EmailChannel returns the email channel plugin backed by send.
func EmailChannel(send EmailSendFunc, opts ...EmailChannelOption) Channel {
	c := &emailChannel{send: send, retries: DefaultEmailRetries}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *emailChannel) Name() ChannelName { return ChannelEmail }
func (c *emailChannel) Retries() int      { return c.retries }

func (c *emailChannel) Init(InitContext) (Handler, error) {
	if c.send == nil {
		return nil, fmt.Errorf("email channel: nil send function")
	}
	return HandlerFunc(c.deliver), nil
}

func (c *emailChannel) deliver(ctx context.Context, env Envelope) (Receipt, error) {
	content, ok := env.Content.(EmailContent)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: email channel got %T content", ErrInvalidData, env.Content)
	}
	if strings.TrimSpace(env.RecipientEmail) == "" {
		return Receipt{}, fmt.Errorf("%w: pass RecipientEmail to Send for notification %q", ErrRecipientRequired, env.Type)
	}

	id, err := c.send(ctx, EmailMessage{
		To:      env.RecipientEmail,
		Subject: content.Subject,
		HTML:    content.HTML,
		Text:    content.Text,
		Tag:     env.Type,
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{ExternalID: id}, nil
}
