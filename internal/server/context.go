package server

import "context"

type contextKey string

const identityKey contextKey = "identity"

// newContextWithIdentity attaches the verified username for the remainder of
// the request. The value is request-scoped and discarded afterwards.
func newContextWithIdentity(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, identityKey, username)
}

// identityFromContext extracts the username set by the authenticate middleware
func identityFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(identityKey).(string)
	return username, ok
}
