package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "datalayer.logger"
	sessionIDKey contextKey = "datalayer.session_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithSessionID records the analytics session the work belongs to.
func WithSessionID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session id set by WithSessionID.
func SessionIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(sessionIDKey).(int64)
	return id, ok
}

// L is a shorthand for FromContext that also adds the session id from
// the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id, ok := SessionIDFromContext(ctx); ok {
		l = l.With("session_id", id)
	}
	return l.WithContext(ctx)
}
