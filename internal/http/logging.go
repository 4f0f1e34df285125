package http

import (
	"context"
	"log/slog"

	"github.com/example/eventrsvp/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger prefers the request logger installed by RequestLogger so
// handler lines carry the request id.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	base := logging.FromContext(ctx)
	if base == nil {
		base = defaultLogger(fallback)
	}

	logger := base.With("handler", handlerName)
	if operation != "" {
		logger = logger.With("operation", operation)
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
