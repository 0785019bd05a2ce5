package authenticator

import (
	"context"

	"talentgate/internal/auth/models"
)

type principalKey struct{}

// WithPrincipal attaches the authenticated principal to ctx.
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal attached by the auth middleware.
func PrincipalFrom(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*models.Principal)
	return principal, ok && principal != nil
}
