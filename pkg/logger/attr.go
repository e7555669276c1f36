package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the recipient user under the key "user_id".
// Anonymous sends carry an empty id, which yields an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// NotificationType records the notification definition key under "notification_type".
func NotificationType(key string) slog.Attr {
	return slog.String("notification_type", key)
}

// Channel records the delivery channel name under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// DeliveryID records a delivery attempt row id under the key "delivery_id".
func DeliveryID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("delivery_id", id)
}

// Attempt records the zero-based attempt index and the remaining retries.
func Attempt(index, retriesLeft int) slog.Attr {
	return slog.Group("attempt",
		slog.Int("index", index),
		slog.Int("retries_left", retriesLeft),
	)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
