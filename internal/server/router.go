package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications/prommetrics"
)

const (
	// NotificationsPath is where the notifications API is mounted.
	NotificationsPath = "/api/notifications"
	// SendPath accepts notification triggers from trusted backends.
	SendPath = "/internal/notifications/send"
)

// Routes collects the handlers served by the binary. Nil fields are skipped.
type Routes struct {
	Notifications http.Handler
	Stream        http.Handler
	Send          http.Handler
	Metrics       *prommetrics.Metrics
	Checks        []Check
	Logger        *slog.Logger
}

// NewRouter builds the chi router with request ids, panic recovery, access
// logging and, when Metrics is set, request metrics.
func NewRouter(rt Routes) chi.Router {
	log := rt.Logger
	if log == nil {
		log = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)
	if rt.Metrics != nil {
		r.Use(rt.Metrics.Middleware)
	}

	r.Get("/healthz", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(log, rt.Checks...))
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics.Handler())
	}
	if rt.Stream != nil {
		r.Method(http.MethodGet, NotificationsPath+"/stream", rt.Stream)
	}
	if rt.Send != nil {
		r.Method(http.MethodPost, SendPath, rt.Send)
	}
	if rt.Notifications != nil {
		r.Mount(NotificationsPath, rt.Notifications)
	}
	return r
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
