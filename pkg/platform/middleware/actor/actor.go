// Package actor resolves who is making a request. Callers without a bearer
// token proceed as the anonymous user. A bearer token that fails validation
// is remembered by Resolve and answered with 401 by Reject, so the audit
// trail can sit between the two and still record the refused request.
package actor

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"ledger/pkg/platform/httputil"
	"ledger/pkg/requestcontext"

	dErrors "ledger/pkg/domain-errors"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims identify the acting user.
type Claims struct {
	UserID   string
	UserName string
}

type rejectionKey struct{}

func withRejection(ctx context.Context, message string) context.Context {
	return context.WithValue(ctx, rejectionKey{}, message)
}

// Rejection returns the reason Resolve refused the caller's credentials.
func Rejection(ctx context.Context) (string, bool) {
	msg, ok := ctx.Value(rejectionKey{}).(string)
	return msg, ok
}

// Resolve attaches the token's user to the request context. Callers with
// unusable credentials continue as anonymous with a rejection recorded; Reject
// must run before any handler. A nil validator treats every caller as
// anonymous.
func Resolve(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			anonymous := requestcontext.WithActor(ctx, "", requestcontext.AnonymousUser)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || validator == nil {
				next.ServeHTTP(w, r.WithContext(anonymous))
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - unsupported authorization scheme",
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r.WithContext(withRejection(anonymous, "Missing or invalid Authorization header")))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r.WithContext(withRejection(anonymous, "Invalid or expired token")))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, claims.UserID, claims.UserName)))
		})
	}
}

// Reject answers 401 for requests whose credentials Resolve refused.
func Reject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if msg, refused := Rejection(r.Context()); refused {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, msg))
			return
		}
		next.ServeHTTP(w, r)
	})
}
