package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// maxBodyBytes caps request bodies accepted by the HTTP facade.
const maxBodyBytes = 1 << 20

// IdentifyFunc extracts the caller's user id from a request. An empty result
// means the caller is not authenticated.
type IdentifyFunc func(r *http.Request) string

// HTTPOption configures the HTTP facade.
type HTTPOption func(*HTTPHandler)

// WithHTTPLogger sets the logger used for failed requests.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// HTTPHandler exposes mark-read and preference operations over HTTP:
//
//	POST /mark-read     {"all": true} | {"notificationIds": ["..."]}
//	GET  /preferences
//	PUT  /preferences   {"preferences": [{"notificationType", "channel", "enabled"}]}
//
// Paths are matched after the last "/notifications" segment, so the handler
// works whether it is mounted with a router or served under any prefix.
// Every route answers 401 without a caller identity; everything else is 404.
type HTTPHandler struct {
	registry *Registry
	identify IdentifyFunc
	logger   *slog.Logger
	mux      *chi.Mux
}

type userIDKey struct{}

// NewHTTPHandler creates the HTTP facade over reg.
func NewHTTPHandler(reg *Registry, identify IdentifyFunc, opts ...HTTPOption) *HTTPHandler {
	h := &HTTPHandler{
		registry: reg,
		identify: identify,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := chi.NewRouter()
	mux.Use(h.authenticate)
	mux.NotFound(h.notFound)
	mux.MethodNotAllowed(h.notFound)
	mux.Post("/mark-read", h.markRead)
	mux.Get("/preferences", h.getPreferences)
	mux.Put("/preferences", h.putPreferences)
	h.mux = mux

	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rctx := chi.NewRouteContext()
	rctx.RoutePath = routePath(r)
	h.mux.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx)))
}

// routePath normalizes the request path to the part after "/notifications".
func routePath(r *http.Request) string {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		path = rctx.RoutePath
	}
	if i := strings.LastIndex(path, "/notifications"); i >= 0 {
		path = path[i+len("/notifications"):]
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if h.identify != nil {
			userID = h.identify(r)
		}
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}

func (h *HTTPHandler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

type markReadRequest struct {
	All             bool     `json:"all"`
	NotificationIDs []string `json:"notificationIds"`
}

func (h *HTTPHandler) markRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := callerID(r)
	var err error
	switch {
	case req.All:
		err = h.registry.MarkAllRead(r.Context(), userID)
	case req.NotificationIDs != nil:
		if len(req.NotificationIDs) == 0 {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
		err = h.registry.MarkRead(r.Context(), userID, req.NotificationIDs...)
	default:
		writeError(w, http.StatusBadRequest, `expected {"all": true} or {"notificationIds": [...]}`)
		return
	}
	if err != nil {
		h.internalError(w, r, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.registry.GetPreferences(r.Context(), callerID(r))
	if err != nil {
		h.internalError(w, r, "get preferences", err)
		return
	}
	if prefs == nil {
		prefs = []Preference{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

type preferenceEntry struct {
	NotificationType string      `json:"notificationType"`
	Channel          ChannelName `json:"channel"`
	Enabled          *bool       `json:"enabled"`
}

func (h *HTTPHandler) putPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences json.RawMessage `json:"preferences"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	raw := bytes.TrimSpace(req.Preferences)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(w, http.StatusBadRequest, "preferences must be an array")
		return
	}
	var entries []preferenceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		writeError(w, http.StatusBadRequest, "preferences must be an array of {notificationType, channel, enabled}")
		return
	}

	updates := make([]PreferenceUpdate, len(entries))
	for i, e := range entries {
		if e.NotificationType == "" || e.Channel == "" || e.Enabled == nil {
			writeError(w, http.StatusBadRequest, "each preference needs notificationType, channel and enabled")
			return
		}
		updates[i] = PreferenceUpdate{NotificationType: e.NotificationType, Channel: e.Channel, Enabled: *e.Enabled}
	}

	if err := h.registry.UpdatePreferences(r.Context(), callerID(r), updates); err != nil {
		if errors.Is(err, ErrInvalidPreference) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, "update preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.LogAttrs(r.Context(), slog.LevelError, "notifications request failed",
		slog.String("op", op),
		logger.UserID(callerID(r)),
		logger.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
