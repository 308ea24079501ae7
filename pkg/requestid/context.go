package requestid

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithContext stores the request id on ctx.
func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request id, or an empty string.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Extractor reads the request id for audit record population.
func Extractor() func(ctx context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		id := FromContext(ctx)
		return id, id != ""
	}
}

// LoggerExtractor adds request_id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}
