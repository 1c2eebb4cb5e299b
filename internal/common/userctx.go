package common

import "context"

type contextKey string

const userIDKey contextKey = "carteira.user_id"

// WithUserID attaches the authenticated caller identity to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ResolveUserID returns the authenticated user id from the context, or empty
// when the call is system-scoped (scheduled jobs, quote/FX ingestion).
func ResolveUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
