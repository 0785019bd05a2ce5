package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"talentgate/internal/auth/authenticator"
	"talentgate/internal/auth/models"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/platform/httputil"
	"talentgate/pkg/requestcontext"
)

// RefreshHeader is set on responses whose access token is close to expiry.
const (
	RefreshHeader    = "X-Token-Refresh"
	RefreshSuggested = "suggested"
)

// Authenticator resolves an Authorization header into a principal.
type Authenticator interface {
	IsPublic(path string) bool
	Authenticate(ctx context.Context, authorizationHeader string) (*models.Principal, error)
}

// RequireAuth returns middleware that authenticates every request whose path
// is not on the public allow-list. On success the principal, user id and
// session id are stored in the request context.
func RequireAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			principal, err := auth.Authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				// The authenticator has already logged and counted the failure.
				httputil.WriteError(w, err)
				return
			}

			ctx = authenticator.WithPrincipal(ctx, principal)
			ctx = requestcontext.WithUserID(ctx, principal.UserID)
			if principal.HasSession() {
				ctx = requestcontext.WithSessionID(ctx, principal.SessionID)
			}
			if principal.RefreshSuggested {
				w.Header().Set(RefreshHeader, RefreshSuggested)
				logger.DebugContext(ctx, "access token close to expiry",
					"user_id", principal.UserID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUserTypes restricts a route to principals carrying one of the given
// user-type hints. It must run after RequireAuth.
func RequireUserTypes(logger *slog.Logger, allowed ...models.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := authenticator.PrincipalFrom(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !slices.Contains(allowed, principal.UserType) {
				logger.WarnContext(ctx, "user type not allowed for route",
					"user_id", principal.UserID.String(),
					"user_type", principal.UserType.String(),
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "user type not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
