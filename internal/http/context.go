package http

import (
	"context"
	"log/slog"

	"github.com/example/eventrsvp/internal/logging"
)

type contextKey string

const (
	eventHashContextKey    contextKey = "event_hash"
	userIDContextKey       contextKey = "user_id"
	collectionIDContextKey contextKey = "collection_id"
)

// ContextWithLogger attaches the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil when none is set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithEventHash injects the event hash resolved from the request path.
func ContextWithEventHash(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, eventHashContextKey, hash)
}

// EventHashFromContext extracts an event hash previously associated with the context.
func EventHashFromContext(ctx context.Context) (string, bool) {
	hash, ok := ctx.Value(eventHashContextKey).(string)
	return hash, ok
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

func ContextWithCollectionID(ctx context.Context, collectionID string) context.Context {
	return context.WithValue(ctx, collectionIDContextKey, collectionID)
}

func CollectionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(collectionIDContextKey).(string)
	return id, ok
}
