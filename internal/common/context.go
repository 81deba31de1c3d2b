package common

import "context"

type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeySessionID contextKey = "session_id"
)

// WithRequestID tags ctx with the id that outbound service calls forward as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeyRequestID)
}

// WithSessionID tags ctx with the browser session that owns the workspace.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, id)
}

func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ContextKeySessionID)
}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
