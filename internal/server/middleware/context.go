package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey   = contextKey{"user_id"}
	deviceIDKey = contextKey{"device_id"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context with user_id and device_id set.
// Handlers and services can read these via GetUserID and GetDeviceID.
func WithIdentity(ctx context.Context, userID, deviceID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, deviceIDKey, deviceID)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetDeviceID returns the device_id from context and true if set; otherwise "", false.
func GetDeviceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(deviceIDKey).(string)
	return v, ok
}

// WithClientIP returns a context carrying the request's client IP for the
// audit logger.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "" if not set.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
