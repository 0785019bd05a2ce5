// Package handler exposes read-only authorization queries over HTTP. Every
// route sits behind the policy guard, so a caller only learns about
// organizations it belongs to.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"talentgate/internal/auth/authenticator"
	authmodels "talentgate/internal/auth/models"
	"talentgate/internal/authz/guard"
	"talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
	"talentgate/pkg/platform/httputil"
	"talentgate/pkg/requestcontext"
)

// PermissionLister lists the role permissions a principal holds in an organization.
type PermissionLister interface {
	PermissionsFor(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID) ([]rbac.Permission, error)
}

type Handler struct {
	guard       *guard.Guard
	permissions PermissionLister
	logger      *slog.Logger
}

func New(g *guard.Guard, permissions PermissionLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{guard: g, permissions: permissions, logger: logger}
}

// Register mounts the organization routes. The parent router must run the
// authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/organizations/{organizationID}", func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.OrgRead))
		r.Get("/permissions", h.HandleListPermissions)
		r.Post("/permissions/check", h.HandleCheckPermission)
	})
}

type PermissionsResponse struct {
	OrganizationID string   `json:"organization_id"`
	Permissions    []string `json:"permissions"`
}

// HandleListPermissions implements GET /organizations/{organizationID}/permissions.
func (h *Handler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	principal, orgID, ok := h.scope(w, r)
	if !ok {
		return
	}
	perms, err := h.permissions.PermissionsFor(r.Context(), principal, orgID)
	if err != nil {
		h.fail(w, r, "list permissions failed", err)
		return
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	httputil.WriteJSON(w, http.StatusOK, PermissionsResponse{
		OrganizationID: orgID.String(),
		Permissions:    out,
	})
}

// CheckPermissionRequest asks whether the caller holds a permission, optionally
// on one job or department.
type CheckPermissionRequest struct {
	Permission   string `json:"permission"`
	ResourceKind string `json:"resource_kind,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	permission rbac.Permission
	resource   *models.ResourceRef
}

func (r *CheckPermissionRequest) Normalize() {
	r.Permission = strings.TrimSpace(r.Permission)
	r.ResourceKind = strings.ToLower(strings.TrimSpace(r.ResourceKind))
	r.ResourceID = strings.TrimSpace(r.ResourceID)
}

func (r *CheckPermissionRequest) Validate() error {
	perm, err := rbac.ParsePermission(r.Permission)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "permission is not recognised")
	}
	r.permission = perm

	if r.ResourceKind == "" && r.ResourceID == "" {
		return nil
	}
	kind := models.ResourceKind(r.ResourceKind)
	if kind != models.ResourceJob && kind != models.ResourceDepartment {
		return dErrors.New(dErrors.CodeValidation, "resource_kind must be job or department")
	}
	resourceID, err := id.ParseResourceID(r.ResourceID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "resource_id must be a valid id")
	}
	r.resource = &models.ResourceRef{Kind: kind, ID: resourceID}
	return nil
}

type CheckPermissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// HandleCheckPermission implements POST /organizations/{organizationID}/permissions/check.
// A denial is an answer, not an error: the response is 200 with allowed=false.
func (h *Handler) HandleCheckPermission(w http.ResponseWriter, r *http.Request) {
	principal, orgID, ok := h.scope(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckPermissionRequest](w, r, h.logger)
	if !ok {
		return
	}

	err := h.guard.Require(r.Context(), principal, orgID, req.permission, req.resource)
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		httputil.WriteJSON(w, http.StatusOK, CheckPermissionResponse{Permission: req.permission.String()})
		return
	default:
		h.fail(w, r, "permission check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CheckPermissionResponse{Permission: req.permission.String(), Allowed: true})
}

// scope returns the principal and the organization the guard authorized.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*authmodels.Principal, id.OrganizationID, bool) {
	principal, ok := authenticator.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, id.OrganizationID{}, false
	}
	orgID, ok := guard.OrganizationFrom(r.Context())
	if !ok {
		h.fail(w, r, "organization missing from request", dErrors.New(dErrors.CodeInternal, "organization not resolved"))
		return nil, id.OrganizationID{}, false
	}
	return principal, orgID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeAuthInfrastructure || code == "" {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
