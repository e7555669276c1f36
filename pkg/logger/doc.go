// Package logger builds *slog.Logger instances for notifykit services and
// provides attribute helpers that keep key names consistent across the
// delivery engine, stores and transports.
//
// New applies functional options (format, level, output, static attributes,
// context extractors) and wraps the handler in LogHandlerDecorator, which
// copies request-scoped values from the context into every record:
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "notifyd"),
//	    logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery attempt failed",
//	    logger.Channel("email"),
//	    logger.DeliveryID(id),
//	    logger.Error(err),
//	)
//
// Helpers such as Error, UserID and DeliveryID return an empty slog.Attr for
// zero values, so callers never need a nil check before logging.
package logger
