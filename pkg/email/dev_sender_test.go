package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	t.Run("writes html text and metadata", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "emails")
		s := email.NewDevSender(email.DevConfig{Dir: dir})

		id, err := s.SendEmail(context.Background(), email.Message{
			To:      "user@example.com",
			Subject: "Welcome aboard",
			HTML:    "<p>hi</p>",
			Text:    "hi",
			Tag:     "Welcome Email!",
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		var htmlFile, jsonFile string
		for _, e := range entries {
			assert.Contains(t, e.Name(), "welcome_email")
			switch filepath.Ext(e.Name()) {
			case ".html":
				htmlFile = e.Name()
			case ".json":
				jsonFile = e.Name()
			}
		}

		html, err := os.ReadFile(filepath.Join(dir, htmlFile))
		require.NoError(t, err)
		assert.Equal(t, "<p>hi</p>", string(html))

		raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
		require.NoError(t, err)
		var meta map[string]string
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, id, meta["message_id"])
		assert.Equal(t, "user@example.com", meta["to"])
		assert.Equal(t, "Welcome Email!", meta["tag"])
	})

	t.Run("subject names the files without a tag", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s := email.NewDevSender(email.DevConfig{Dir: dir})

		_, err := s.SendEmail(context.Background(), email.Message{To: "user@example.com", Subject: "Reset Password", Text: "x"})
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.True(t, strings.Contains(e.Name(), "reset_password"), e.Name())
		}
	})

	t.Run("distinct ids for back to back sends", func(t *testing.T) {
		t.Parallel()

		s := email.NewDevSender(email.DevConfig{Dir: t.TempDir()})
		msg := email.Message{To: "user@example.com", Subject: "Hi", HTML: "<p>hi</p>"}

		first, err := s.SendEmail(context.Background(), msg)
		require.NoError(t, err)
		second, err := s.SendEmail(context.Background(), msg)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("invalid message writes nothing", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out")
		s := email.NewDevSender(email.DevConfig{Dir: dir})

		_, err := s.SendEmail(context.Background(), email.Message{Subject: "Hi"})
		assert.ErrorIs(t, err, email.ErrInvalidMessage)
		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := email.NewDevSender(email.DevConfig{Dir: t.TempDir()})
		_, err := s.SendEmail(ctx, email.Message{To: "user@example.com", Subject: "Hi", Text: "x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
