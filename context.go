package backoffice

import "context"

type originContextKey struct{}

// WithOrigin attaches the console surface (screen or widget name) issuing
// the call to ctx. The coordinator copies it into journal records so an
// operator action can be traced back to the screen that triggered it.
//
//	Docs: docs/journal.md
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originContextKey{}, origin)
}

func originFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	origin, _ := ctx.Value(originContextKey{}).(string)
	return origin
}
