package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DevSender writes emails to a directory instead of sending them.
// Each message produces <timestamp>_<tag>.html, .txt when a text part exists,
// and a .json metadata file.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender returns a sender that stores messages under dir, creating it on first use.
func NewDevSender(cfg DevConfig) *DevSender {
	return &DevSender{dir: cfg.Dir, now: time.Now}
}

type devMetadata struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

// SendEmail implements Sender. The returned id is a random UUID.
func (d *DevSender) SendEmail(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrFailedToSendEmail, err)
	}

	id := uuid.NewString()
	now := d.now()

	identifier := msg.Tag
	if identifier == "" {
		identifier = msg.Subject
	}
	// The id suffix keeps two sends within the same second apart.
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	if msg.HTML != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(msg.HTML), 0o644); err != nil {
			return "", fmt.Errorf("%w: write html: %v", ErrFailedToSendEmail, err)
		}
	}
	if msg.Text != "" {
		if err := os.WriteFile(filepath.Join(d.dir, base+".txt"), []byte(msg.Text), 0o644); err != nil {
			return "", fmt.Errorf("%w: write text: %v", ErrFailedToSendEmail, err)
		}
	}

	meta, err := json.MarshalIndent(devMetadata{
		MessageID: id,
		Timestamp: now.Format(time.RFC3339),
		To:        msg.To,
		Subject:   msg.Subject,
		Tag:       msg.Tag,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return "", fmt.Errorf("%w: write metadata: %v", ErrFailedToSendEmail, err)
	}

	return id, nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename lowercases s, replaces spaces and drops anything unsafe for a path.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
