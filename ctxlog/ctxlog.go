// Package ctxlog carries a logger and a session id in a context.Context.
package ctxlog

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	loggerKey  struct{}
	sessionKey struct{}
)

// WithLogger returns a context carrying log.
func WithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// Logger returns the logger in ctx,
// or a no-op logger if there is none.
func Logger(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}

// WithSession starts a new session:
// it assigns a fresh id and tags the context's logger with it.
func WithSession(ctx context.Context) context.Context {
	id := uuid.New().String()
	ctx = context.WithValue(ctx, sessionKey{}, id)
	return WithLogger(ctx, Logger(ctx).With(zap.String("session", id)))
}

// Session returns the session id in ctx, or "".
func Session(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
