package interceptors

import "context"

type contextKey struct{ name string }

var (
	userIDKey    = contextKey{"user_id"}
	loginNameKey = contextKey{"login_name"}
)

// WithIdentity returns a context with the authenticated user_id and login name set.
func WithIdentity(ctx context.Context, userID, loginName string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, loginNameKey, loginName)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetLoginName returns the login name from context and true if set; otherwise "", false.
func GetLoginName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(loginNameKey).(string)
	return v, ok
}
