package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/internal/server"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/prommetrics"
)

type greeting struct {
	Name string
}

var greetingDef = notifications.Define("greeting", notifications.Channels[greeting]{
	InApp: func(g greeting) notifications.InAppContent {
		return notifications.InAppContent{Title: "Hello " + g.Name}
	},
})

func identifyHeader(r *http.Request) string { return r.Header.Get("X-User-ID") }

type fixture struct {
	srv     *httptest.Server
	reg     *notifications.Registry
	feed    *notifications.Feed
	metrics *prommetrics.Metrics
}

func newFixture(t *testing.T, checks ...server.Check) *fixture {
	t.Helper()

	feed := notifications.NewFeed(4)
	t.Cleanup(feed.Close)

	reg, err := notifications.New(notifications.NewMemoryStore(),
		[]notifications.Channel{notifications.InAppChannel(notifications.WithFeed(feed))},
		[]notifications.Definition{greetingDef},
		notifications.WithLogger(logger.Discard()),
		notifications.WithBackoff(0),
	)
	require.NoError(t, err)

	metrics := prommetrics.New(false)
	router := server.NewRouter(server.Routes{
		Notifications: notifications.NewHTTPHandler(reg, identifyHeader),
		Stream:        server.NewStreamHandler(feed, reg, identifyHeader, logger.Discard()),
		Metrics:       metrics,
		Checks:        checks,
		Logger:        logger.Discard(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, reg: reg, feed: feed, metrics: metrics}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, server.Check{Name: "db", Check: func(context.Context) error { return errors.New("down") }})
		status, body := f.do(t, http.MethodGet, "/healthz", "", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ALIVE", body)
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, server.Check{Name: "db", Check: func(context.Context) error { return nil }})
		status, body := f.do(t, http.MethodGet, "/readyz", "", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "READY", body)
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t,
			server.Check{Name: "db", Check: func(context.Context) error { return nil }},
			server.Check{Name: "cache", Check: func(context.Context) error { return errors.New("down") }},
		)
		status, body := f.do(t, http.MethodGet, "/readyz", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "NOT_READY", body)
	})
}

func TestRouter_NotificationsMount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	status, _ := f.do(t, http.MethodGet, server.NotificationsPath+"/preferences", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := f.do(t, http.MethodGet, server.NotificationsPath+"/preferences", "u1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"preferences":[]}`, body)

	status, _ = f.do(t, http.MethodPut, server.NotificationsPath+"/preferences", "u1",
		`{"preferences":[{"notificationType":"greeting","channel":"in-app","enabled":false}]}`)
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, server.NotificationsPath+"/preferences", "u1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"enabled":false`)

	status, _ = f.do(t, http.MethodPost, server.NotificationsPath+"/mark-read", "u1", `{"all":true}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.do(t, http.MethodGet, "/healthz", "", "")

	status, body := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `notifykit_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_RequestID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStream(t *testing.T) {
	t.Parallel()

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		status, _ := f.do(t, http.MethodGet, server.NotificationsPath+"/stream", "", "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("pushes new inbox rows", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+server.NotificationsPath+"/stream", nil)
		require.NoError(t, err)
		req.Header.Set("X-User-ID", "u1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

		reader := bufio.NewReader(resp.Body)
		first := readUntil(t, reader, "unread")
		assert.Contains(t, first, `"unread":0`)
		require.Equal(t, 1, f.feed.Subscribers("u1"))

		require.NoError(t, f.reg.Send(ctx, notifications.SendParams{
			Type:   "greeting",
			UserID: "u1",
			Data:   greeting{Name: "Ada"},
		}))

		next := readUntil(t, reader, "Hello Ada")
		assert.Contains(t, next, `"unread":1`)
	})
}

// readUntil reads SSE lines until one contains needle and returns that line.
func readUntil(t *testing.T, r *bufio.Reader, needle string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "stream ended before %q", needle)
		if strings.Contains(line, needle) {
			return line
		}
	}
}
