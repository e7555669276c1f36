package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Sender transmits one email and returns the provider-assigned message id.
type Sender interface {
	SendEmail(ctx context.Context, msg Message) (string, error)
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, msg Message) (string, error)

func (f SenderFunc) SendEmail(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

// Message is a single transactional email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Tag     string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate reports the first missing or malformed field.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case !emailRegex.MatchString(m.To):
		return fmt.Errorf("%w: recipient %q is not a valid email address", ErrInvalidMessage, m.To)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case strings.TrimSpace(m.HTML) == "" && strings.TrimSpace(m.Text) == "":
		return fmt.Errorf("%w: html or text body is required", ErrInvalidMessage)
	}
	return nil
}

func validateAddress(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
	}
	if !emailRegex.MatchString(addr) {
		return fmt.Errorf("%w: %s must be a valid email address", ErrInvalidConfig, field)
	}
	return nil
}
