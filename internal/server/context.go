package server

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	clientKey
	subjectKey
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func valueOf(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// RequestID returns the request ID attached by the request ID middleware.
func RequestID(ctx context.Context) string {
	return valueOf(ctx, requestIDKey)
}
