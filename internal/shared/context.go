// Package shared carries cross-cutting pieces used by several domains:
// the request identity context, the audit logger and the login throttle.
package shared

import "context"

type userIDContextKey struct{}

// ContextWithUserID stores the authenticated user id in the context.
// Only the session boundary writes it, after the token has been fully
// verified against live account state.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(int64)
	return id, ok
}
