// Package ctxlog carries a slog.Logger through context.Context so that
// library code can log without touching the process-global logger.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is unexported to keep this context key from colliding with keys owned
// by other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a child context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from ctx, falling back to slog.Default()
// when none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
