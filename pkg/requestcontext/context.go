// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// set by middleware but consumed by services and stores. Keeping it free of net/http
// lets the change-capture path read the audit header id without importing handlers.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	headerID, ok := requestcontext.AuditHeaderID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, userID, userName)
//	ctx = requestcontext.WithAuditHeaderID(ctx, headerID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// AnonymousUser is the actor name recorded when no authenticated caller is present.
const AnonymousUser = "anonymous"

// Context key types (unexported for encapsulation).
type (
	userIDKey        struct{}
	userNameKey      struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
	auditHeaderIDKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyUserID        = userIDKey{}
	ContextKeyUserName      = userNameKey{}
	ContextKeyClientIP      = clientIPKey{}
	ContextKeyUserAgent     = userAgentKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
	ContextKeyAuditHeaderID = auditHeaderIDKey{}
)

// -----------------------------------------------------------------------------
// Actor
// -----------------------------------------------------------------------------

// UserID retrieves the authenticated user ID from the context.
// Returns "" for anonymous callers.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// UserName retrieves the display name of the caller.
// Returns AnonymousUser if not set.
func UserName(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeyUserName).(string); ok && name != "" {
		return name
	}
	return AnonymousUser
}

// Actor returns the name written to CreatedBy/UpdatedBy columns.
func Actor(ctx context.Context) string {
	return UserName(ctx)
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, userID, userName string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUserName, userName)
	return ctx
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Audit correlation
// -----------------------------------------------------------------------------

// AuditHeaderID returns the id of the audit header opened for the current request.
// ok is false outside an audited request; change capture is skipped in that case.
func AuditHeaderID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyAuditHeaderID).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// WithAuditHeaderID binds an audit header id to the request.
func WithAuditHeaderID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ContextKeyAuditHeaderID, id)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
