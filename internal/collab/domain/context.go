package domain

import "context"

type callerKey struct{}

// WithCaller attaches the acting user id to ctx. Stores use it to scope
// row-level security to the caller.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerID returns the acting user id stored by WithCaller.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}
