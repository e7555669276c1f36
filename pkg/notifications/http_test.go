package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func headerIdentity(r *http.Request) string { return r.Header.Get("X-User-ID") }

func newHTTPFixture(t *testing.T) (*notifications.Registry, *notifications.HTTPHandler) {
	t.Helper()
	reg := newTestRegistry(t, notifications.NewMemoryStore(), (&recordingSender{}).Send)
	h := notifications.NewHTTPHandler(reg, headerIdentity, notifications.WithHTTPLogger(logger.Discard()))
	return reg, h
}

func do(h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_Auth(t *testing.T) {
	t.Parallel()

	_, h := newHTTPFixture(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/notifications/mark-read"},
		{http.MethodGet, "/api/notifications/preferences"},
		{http.MethodPut, "/api/notifications/preferences"},
		{http.MethodGet, "/api/notifications/unknown"},
	}
	for _, rt := range routes {
		rec := do(h, rt.method, rt.path, "", `{"all":true}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", rt.method, rt.path)
	}
}

func TestHTTPHandler_NotFound(t *testing.T) {
	t.Parallel()

	_, h := newHTTPFixture(t)

	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/unknown"},
		{http.MethodGet, "/notifications/unknown"},
		{http.MethodGet, "/notifications/mark-read"},
		{http.MethodDelete, "/notifications/preferences"},
		{http.MethodGet, "/notifications"},
	} {
		rec := do(h, rt.method, rt.path, "u1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", rt.method, rt.path)
	}
}

func TestHTTPHandler_MarkRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T) (*notifications.Registry, http.Handler, []notifications.InAppNotification) {
		t.Helper()
		reg, h := newHTTPFixture(t)
		for range 3 {
			require.NoError(t, reg.Send(ctx, notifications.SendParams{Type: "welcome", UserID: "u1"}))
		}
		rows, err := reg.List(ctx, "u1", notifications.ListOptions{})
		require.NoError(t, err)
		return reg, h, rows
	}

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		reg, h, _ := seed(t)
		rec := do(h, http.MethodPost, "/notifications/mark-read", "u1", `{"all":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

		count, err := reg.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ids", func(t *testing.T) {
		t.Parallel()

		reg, h, rows := seed(t)
		body := `{"notificationIds":["` + rows[0].ID + `","` + rows[1].ID + `"]}`
		rec := do(h, http.MethodPost, "/notifications/mark-read/", "u1", body)
		require.Equal(t, http.StatusOK, rec.Code)

		count, err := reg.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("empty ids is a no-op", func(t *testing.T) {
		t.Parallel()

		reg, h, _ := seed(t)
		rec := do(h, http.MethodPost, "/notifications/mark-read", "u1", `{"notificationIds":[]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		count, err := reg.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("other users are untouched", func(t *testing.T) {
		t.Parallel()

		reg, h, _ := seed(t)
		rec := do(h, http.MethodPost, "/notifications/mark-read", "u2", `{"all":true}`)
		require.Equal(t, http.StatusOK, rec.Code)

		count, err := reg.CountUnread(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("bad bodies", func(t *testing.T) {
		t.Parallel()

		_, h, _ := seed(t)
		for _, body := range []string{``, `not json`, `{}`, `{"all":false}`, `{"notificationIds":"x"}`, `{"notificationIds":null}`} {
			rec := do(h, http.MethodPost, "/notifications/mark-read", "u1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Contains(t, rec.Body.String(), `"error"`)
		}
	})
}

func TestHTTPHandler_Preferences(t *testing.T) {
	t.Parallel()

	t.Run("get empty", func(t *testing.T) {
		t.Parallel()

		_, h := newHTTPFixture(t)
		rec := do(h, http.MethodGet, "/notifications/preferences", "u1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"preferences":[]}`, rec.Body.String())
	})

	t.Run("put then get", func(t *testing.T) {
		t.Parallel()

		_, h := newHTTPFixture(t)
		rec := do(h, http.MethodPut, "/notifications/preferences", "u1",
			`{"preferences":[{"notificationType":"digest","channel":"email","enabled":false},{"notificationType":"*","channel":"in-app","enabled":true}]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

		rec = do(h, http.MethodGet, "/notifications/preferences", "u1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Preferences []notifications.Preference `json:"preferences"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Preferences, 2)
		assert.Equal(t, "digest", resp.Preferences[0].NotificationType)
		assert.False(t, resp.Preferences[0].Enabled)
		assert.Equal(t, "u1", resp.Preferences[0].UserID)

		rec = do(h, http.MethodGet, "/notifications/preferences", "u2", "")
		assert.JSONEq(t, `{"preferences":[]}`, rec.Body.String())
	})

	t.Run("bad bodies", func(t *testing.T) {
		t.Parallel()

		_, h := newHTTPFixture(t)
		for _, body := range []string{
			`nope`,
			`{}`,
			`{"preferences":{}}`,
			`{"preferences":"all"}`,
			`{"preferences":null}`,
			`{"preferences":[1,2]}`,
			`{"preferences":[{"notificationType":"digest","channel":"email"}]}`,
			`{"preferences":[{"channel":"email","enabled":true}]}`,
		} {
			rec := do(h, http.MethodPut, "/notifications/preferences", "u1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestHTTPHandler_MountedOnRouter(t *testing.T) {
	t.Parallel()

	_, h := newHTTPFixture(t)
	r := chi.NewRouter()
	r.Mount("/api/v1/inbox", h)

	rec := do(r, http.MethodGet, "/api/v1/inbox/preferences", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/inbox/nope", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
