package testutil

import (
	"context"
	"net/http"
	"time"

	"ledger/pkg/requestcontext"
)

// WithActor sets the acting user on the request context, as the actor
// middleware would for an authenticated caller.
func WithActor(req *http.Request, userID, userName string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), userID, userName))
}

// WithAuditHeader binds an open audit header id to the request context.
func WithAuditHeader(req *http.Request, headerID int64) *http.Request {
	return req.WithContext(requestcontext.WithAuditHeaderID(req.Context(), headerID))
}

// RequestContext returns a context carrying a request id, a fixed request
// time and the given actor.
func RequestContext(userName string, now time.Time) context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), "req-test")
	ctx = requestcontext.WithTime(ctx, now)
	return requestcontext.WithActor(ctx, userName, userName)
}
