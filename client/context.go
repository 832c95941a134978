package client

import "context"

type requestIDContextKey struct{}

// WithRequestID pins the X-Request-ID header for every request issued under
// ctx. Without it the client generates a fresh UUID per request. Pinning is
// useful when a console screen wants one correlation ID across a whole
// save-and-reload sequence.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
