// Package resolver decides whether a principal may exercise a permission
// inside one organization.
//
// Every check runs in a fixed order: membership, then role permissions, then
// an optional contextual grant derived from resource ownership. Membership is
// always looked up first so a caller outside the organization learns nothing
// about which permissions exist there.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	authmodels "talentgate/internal/auth/models"
	"talentgate/internal/authz/metrics"
	"talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
	dErrors "talentgate/pkg/domain-errors"
)

const tracerName = "talentgate/authz"

// MembershipRepository finds a user's membership in one organization.
type MembershipRepository interface {
	Find(ctx context.Context, userID id.UserID, orgID id.OrganizationID) (*models.Membership, error)
}

// OwnershipRepository reports who is recorded against a resource, such as a
// job's hiring manager.
type OwnershipRepository interface {
	FindAssignee(ctx context.Context, orgID id.OrganizationID, ref models.ResourceRef) (id.UserID, error)
}

// Recorder receives one decision per check.
type Recorder interface {
	IncrementDecision(outcome, source string)
	ObserveCheck(start time.Time)
}

// ContextualRule grants a fixed permission set to whoever Owners reports as
// assigned to the resource.
type ContextualRule struct {
	Owners OwnershipRepository
	Grants rbac.PermissionSet
}

type Resolver struct {
	registry    *rbac.Registry
	memberships MembershipRepository
	rules       map[models.ResourceKind]ContextualRule
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     Recorder
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

func WithRecorder(m Recorder) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithRegistry replaces the default role table.
func WithRegistry(reg *rbac.Registry) Option {
	return func(r *Resolver) {
		r.registry = reg
	}
}

// WithContextualRule enables ownership-based grants for one resource kind.
func WithContextualRule(kind models.ResourceKind, owners OwnershipRepository, grants rbac.PermissionSet) Option {
	return func(r *Resolver) {
		r.rules[kind] = ContextualRule{Owners: owners, Grants: grants}
	}
}

// WithJobOwnership grants the hiring-manager set to the user recorded on a job.
func WithJobOwnership(owners OwnershipRepository) Option {
	return WithContextualRule(models.ResourceJob, owners, rbac.HiringManagerGrants())
}

// WithDepartmentOwnership grants the department-head set to the user recorded on a department.
func WithDepartmentOwnership(owners OwnershipRepository) Option {
	return WithContextualRule(models.ResourceDepartment, owners, rbac.DepartmentHeadGrants())
}

func New(memberships MembershipRepository, opts ...Option) (*Resolver, error) {
	if memberships == nil {
		return nil, errors.New("membership repository is required")
	}
	r := &Resolver{
		memberships: memberships,
		rules:       make(map[models.ResourceKind]ContextualRule),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = rbac.DefaultRegistry()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	for kind, rule := range r.rules {
		if rule.Owners == nil || rule.Grants.Len() == 0 {
			return nil, errors.New("contextual rule for " + string(kind) + " needs an ownership repository and grants")
		}
	}
	return r, nil
}

// Authorize returns nil when the principal holds perm in orgID, either through
// its role or through a contextual grant on resource. resource may be nil.
func (r *Resolver) Authorize(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, perm rbac.Permission, resource *models.ResourceRef) (err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "authz.Authorize", trace.WithAttributes(
		attribute.String("authz.organization_id", orgID.String()),
		attribute.String("authz.permission", perm.String()),
	))
	source := metrics.SourceNone
	defer func() {
		r.finish(span, start, source, err)
	}()

	if principal == nil || principal.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	span.SetAttributes(attribute.String("authz.user_id", principal.UserID.String()))

	membership, err := r.membership(ctx, principal.UserID, orgID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("authz.role", membership.Role.String()))

	if r.registry.Has(membership.Role, perm) {
		source = metrics.SourceRole
		return nil
	}

	granted, err := r.contextualGrant(ctx, principal.UserID, orgID, perm, resource)
	if err != nil {
		return r.infrastructure(ctx, err, "ownership lookup failed",
			"user_id", principal.UserID.String(),
			"organization_id", orgID.String(),
			"resource_kind", string(resource.Kind),
		)
	}
	if granted {
		source = metrics.SourceContextual
		return nil
	}

	r.logger.WarnContext(ctx, "permission denied",
		"user_id", principal.UserID.String(),
		"organization_id", orgID.String(),
		"role", membership.Role.String(),
		"permission", perm.String(),
		"reason", string(dErrors.CodeInsufficientPermission),
	)
	return dErrors.New(dErrors.CodeInsufficientPermission, "insufficient permission")
}

// RequireRole passes when the principal's role in orgID is one of roles.
func (r *Resolver) RequireRole(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID, roles ...rbac.Role) error {
	if principal == nil || principal.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	membership, err := r.membership(ctx, principal.UserID, orgID)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if membership.Role == role {
			return nil
		}
	}
	r.logger.WarnContext(ctx, "role requirement not met",
		"user_id", principal.UserID.String(),
		"organization_id", orgID.String(),
		"role", membership.Role.String(),
		"reason", string(dErrors.CodeInsufficientPermission),
	)
	return dErrors.New(dErrors.CodeInsufficientPermission, "insufficient permission")
}

// PermissionsFor lists the permissions the principal's role carries in orgID.
// Contextual grants are resource specific and not included.
func (r *Resolver) PermissionsFor(ctx context.Context, principal *authmodels.Principal, orgID id.OrganizationID) ([]rbac.Permission, error) {
	if principal == nil || principal.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	membership, err := r.membership(ctx, principal.UserID, orgID)
	if err != nil {
		return nil, err
	}
	return r.registry.PermissionsFor(membership.Role), nil
}

func (r *Resolver) membership(ctx context.Context, userID id.UserID, orgID id.OrganizationID) (*models.Membership, error) {
	membership, err := r.memberships.Find(ctx, userID, orgID)
	if err == nil {
		return membership, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		r.logger.WarnContext(ctx, "organization access denied",
			"user_id", userID.String(),
			"organization_id", orgID.String(),
			"reason", string(dErrors.CodeOrganizationAccessDenied),
		)
		return nil, dErrors.New(dErrors.CodeOrganizationAccessDenied, "organization access denied")
	}
	return nil, r.infrastructure(ctx, err, "membership lookup failed",
		"user_id", userID.String(),
		"organization_id", orgID.String(),
	)
}

func (r *Resolver) contextualGrant(ctx context.Context, userID id.UserID, orgID id.OrganizationID, perm rbac.Permission, resource *models.ResourceRef) (bool, error) {
	if resource.IsZero() {
		return false, nil
	}
	rule, ok := r.rules[resource.Kind]
	if !ok || !rule.Grants.Has(perm) {
		return false, nil
	}
	assignee, err := rule.Owners.FindAssignee(ctx, orgID, *resource)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return assignee == userID, nil
}

func (r *Resolver) infrastructure(ctx context.Context, err error, msg string, attrs ...any) error {
	r.logger.ErrorContext(ctx, msg, append(attrs, "error", err)...)
	return dErrors.Wrap(err, dErrors.CodeAuthInfrastructure, "authorization temporarily unavailable")
}

func (r *Resolver) finish(span trace.Span, start time.Time, source string, err error) {
	outcome := metrics.OutcomeAllowed
	switch {
	case dErrors.HasCode(err, dErrors.CodeAuthInfrastructure):
		outcome = metrics.OutcomeError
	case err != nil:
		outcome = metrics.OutcomeDenied
	}
	if r.metrics != nil {
		r.metrics.IncrementDecision(outcome, source)
		r.metrics.ObserveCheck(start)
	}
	span.SetAttributes(
		attribute.String("authz.outcome", outcome),
		attribute.String("authz.source", source),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
