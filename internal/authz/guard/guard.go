package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"talentgate/internal/auth/authenticator"
	authmodels "talentgate/internal/auth/models"
	"talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/platform/httputil"
	"talentgate/pkg/requestcontext"
)

// DefaultOrganizationParam is the chi URL parameter holding the organization id.
const DefaultOrganizationParam = "organizationID"

// Authorizer is the resolver surface the guard delegates to.
type Authorizer interface {
	Authorize(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, perm rbac.Permission, resource *models.ResourceRef) error
	RequireRole(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, roles ...rbac.Role) error
}

// Guard must run before any side effect of the operation it protects.
type Guard struct {
	authz  Authorizer
	logger *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(authz Authorizer, opts ...Option) *Guard {
	g := &Guard{authz: authz}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Require returns nil when principal may exercise perm in orgID. Both kinds
// of authorization denial come back as the same forbidden error; the
// specific reason stays in the chain for logs and tests.
func (g *Guard) Require(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, perm rbac.Permission, resource *models.ResourceRef) error {
	return uniform(g.authz.Authorize(ctx, principal, orgID, perm, resource))
}

// RequireRole returns nil when principal holds one of roles in orgID.
func (g *Guard) RequireRole(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, roles ...rbac.Role) error {
	return uniform(g.authz.RequireRole(ctx, principal, orgID, roles...))
}

func uniform(err error) error {
	if err == nil {
		return nil
	}
	if dErrors.IsAuthorization(dErrors.CodeOf(err)) {
		return &dErrors.Error{Code: dErrors.CodeForbidden, Message: "access denied", Err: err}
	}
	return err
}

type routeConfig struct {
	orgParam      string
	resourceKind  models.ResourceKind
	resourceParam string
}

// RouteOption configures where the middleware reads its identifiers from.
type RouteOption func(*routeConfig)

// OrganizationParam overrides the URL parameter holding the organization id.
func OrganizationParam(name string) RouteOption {
	return func(c *routeConfig) {
		c.orgParam = name
	}
}

// ResourceParam names the URL parameter holding the id of a resource of kind,
// enabling contextual grants for the route.
func ResourceParam(kind models.ResourceKind, name string) RouteOption {
	return func(c *routeConfig) {
		c.resourceKind = kind
		c.resourceParam = name
	}
}

// RequirePermission returns chi middleware that authorizes perm against the
// organization named in the URL.
func (g *Guard) RequirePermission(perm rbac.Permission, opts ...RouteOption) func(http.Handler) http.Handler {
	cfg := newRouteConfig(opts)
	return g.middleware(cfg, func(r *http.Request, p *authmodels.Principal, orgID id.OrganizationID, resource *models.ResourceRef) error {
		return g.Require(r.Context(), p, orgID, perm, resource)
	})
}

// RequireRoles returns chi middleware that passes only members holding one of roles.
func (g *Guard) RequireRoles(roles []rbac.Role, opts ...RouteOption) func(http.Handler) http.Handler {
	cfg := newRouteConfig(opts)
	return g.middleware(cfg, func(r *http.Request, p *authmodels.Principal, orgID id.OrganizationID, _ *models.ResourceRef) error {
		return g.RequireRole(r.Context(), p, orgID, roles...)
	})
}

func newRouteConfig(opts []RouteOption) routeConfig {
	cfg := routeConfig{orgParam: DefaultOrganizationParam}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type checkFunc func(r *http.Request, p *authmodels.Principal, orgID id.OrganizationID, resource *models.ResourceRef) error

func (g *Guard) middleware(cfg routeConfig, check checkFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := authenticator.PrincipalFrom(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}

			orgID, err := id.ParseOrganizationID(chi.URLParam(r, cfg.orgParam))
			if err != nil {
				g.logger.WarnContext(ctx, "invalid organization id in route",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			var resource *models.ResourceRef
			if cfg.resourceParam != "" {
				resourceID, err := id.ParseResourceID(chi.URLParam(r, cfg.resourceParam))
				if err != nil {
					httputil.WriteError(w, err)
					return
				}
				resource = &models.ResourceRef{Kind: cfg.resourceKind, ID: resourceID}
			}

			if err := check(r, principal, orgID, resource); err != nil {
				var domainErr *dErrors.Error
				if !errors.As(err, &domainErr) {
					err = dErrors.Wrap(err, dErrors.CodeInternal, "authorization failed")
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOrganization(ctx, orgID)))
		})
	}
}

type organizationKey struct{}

// WithOrganization records the organization a request was authorized against.
func WithOrganization(ctx context.Context, orgID id.OrganizationID) context.Context {
	return context.WithValue(ctx, organizationKey{}, orgID)
}

// OrganizationFrom returns the organization set by the guard middleware.
func OrganizationFrom(ctx context.Context) (id.OrganizationID, bool) {
	orgID, ok := ctx.Value(organizationKey{}).(id.OrganizationID)
	return orgID, ok
}
