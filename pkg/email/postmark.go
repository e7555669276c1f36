package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkSender sends email through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender validates cfg and returns a Postmark-backed sender.
func NewPostmarkSender(cfg PostmarkConfig) (*PostmarkSender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: postmark account token is required", ErrInvalidConfig)
	}
	if err := validateAddress("sender email", cfg.SenderEmail); err != nil {
		return nil, err
	}
	if err := validateAddress("support email", cfg.SupportEmail); err != nil {
		return nil, err
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg.Config,
	}, nil
}

// MustNewPostmarkSender panics on invalid config.
func MustNewPostmarkSender(cfg PostmarkConfig) *PostmarkSender {
	s, err := NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// SendEmail implements Sender. Opens are tracked, links only in the HTML part.
func (s *PostmarkSender) SendEmail(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return "", errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return "", errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return resp.MessageID, nil
}
