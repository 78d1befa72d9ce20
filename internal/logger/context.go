package logger

import (
	"context"
	"io"
	"log/slog"
)

type correlationKey struct{}

const correlationAttr = "correlation_id"

// WithCorrelationID stores the message correlation id on the context so that
// every log line emitted while handling that message can be traced back to it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// For returns base (or the global logger when base is nil) annotated with the
// correlation id carried by ctx.
func For(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = L()
	}
	if id := CorrelationID(ctx); id != "" {
		return base.With(correlationAttr, id)
	}
	return base
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
