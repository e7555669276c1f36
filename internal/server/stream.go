package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// UnreadCounter reports the unread inbox size; *notifications.Registry implements it.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

// inboxSignals is the datastar signal payload pushed to the browser.
type inboxSignals struct {
	Inbox inboxState `json:"inbox"`
}

type inboxState struct {
	Unread int                              `json:"unread"`
	Latest *notifications.InAppNotification `json:"latest,omitempty"`
}

// StreamHandler pushes the caller's new in-app notifications as datastar
// signal patches over server-sent events.
type StreamHandler struct {
	feed     *notifications.Feed
	counter  UnreadCounter
	identify notifications.IdentifyFunc
	logger   *slog.Logger
}

// NewStreamHandler returns the live inbox stream. A nil identify rejects every request.
func NewStreamHandler(feed *notifications.Feed, counter UnreadCounter, identify notifications.IdentifyFunc, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{feed: feed, counter: counter, identify: identify, logger: log}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if h.identify != nil {
		userID = h.identify(r)
	}
	if userID == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	sub := h.feed.Subscribe(ctx, userID)
	defer h.feed.Unsubscribe(sub)

	sse := datastar.NewSSE(w, r)

	unread, err := h.counter.CountUnread(ctx, userID)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelError, "count unread failed", logger.UserID(userID), logger.Error(err))
	}
	if err := sse.MarshalAndPatchSignals(inboxSignals{Inbox: inboxState{Unread: unread}}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.Notifications():
			if !ok {
				return
			}
			if c, err := h.counter.CountUnread(ctx, userID); err == nil {
				unread = c
			} else {
				unread++
			}
			if err := sse.MarshalAndPatchSignals(inboxSignals{Inbox: inboxState{Unread: unread, Latest: &n}}); err != nil {
				h.logger.LogAttrs(ctx, slog.LevelDebug, "inbox stream closed", logger.UserID(userID), logger.Error(err))
				return
			}
		}
	}
}
