package rbac

import (
	"strings"

	dErrors "talentgate/pkg/domain-errors"
)

// Permission is a discrete capability checked before an operation proceeds.
// Each capability has exactly one canonical identifier.
type Permission string

// Organization management
const (
	OrgCreate         Permission = "org:create"
	OrgRead           Permission = "org:read"
	OrgUpdate         Permission = "org:update"
	OrgDelete         Permission = "org:delete"
	OrgManageUsers    Permission = "org:manage_users"
	OrgManageBilling  Permission = "org:manage_billing"
	OrgManageSettings Permission = "org:manage_settings"
	OrgAdmin          Permission = "org:admin"
)

// Jobs
const (
	JobCreate  Permission = "job:create"
	JobRead    Permission = "job:read"
	JobUpdate  Permission = "job:update"
	JobDelete  Permission = "job:delete"
	JobPublish Permission = "job:publish"
	JobClose   Permission = "job:close"
)

// Applications
const (
	ApplicationRead    Permission = "application:read"
	ApplicationUpdate  Permission = "application:update"
	ApplicationReview  Permission = "application:review"
	ApplicationAdvance Permission = "application:advance"
	ApplicationReject  Permission = "application:reject"
	ApplicationDelete  Permission = "application:delete"
)

// Candidates
const (
	CandidateCreate Permission = "candidate:create"
	CandidateRead   Permission = "candidate:read"
	CandidateUpdate Permission = "candidate:update"
	CandidateDelete Permission = "candidate:delete"
	CandidateExport Permission = "candidate:export"
)

// Offers
const (
	OfferCreate  Permission = "offer:create"
	OfferRead    Permission = "offer:read"
	OfferUpdate  Permission = "offer:update"
	OfferApprove Permission = "offer:approve"
	OfferSend    Permission = "offer:send"
	OfferRevoke  Permission = "offer:revoke"
)

// Interviews
const (
	InterviewSchedule Permission = "interview:schedule"
	InterviewConduct  Permission = "interview:conduct"
	InterviewFeedback Permission = "interview:feedback"
)

// Reporting
const (
	ReportView       Permission = "report:view"
	ReportExport     Permission = "report:export"
	ReportCompliance Permission = "report:compliance"
	AnalyticsView    Permission = "analytics:view"
)

// Users, settings and system administration
const (
	UserInvite   Permission = "user:invite"
	UserManage   Permission = "user:manage"
	UserRemove   Permission = "user:remove"
	SettingsView Permission = "settings:view"
	SettingsEdit Permission = "settings:edit"
	SystemAdmin  Permission = "system:admin"
	SystemAudit  Permission = "system:audit"
)

// Aliases are alternative spellings of a canonical permission. They are
// constants of the canonical value and can never diverge from it.
const (
	OrgView         = OrgRead
	OrgEdit         = OrgUpdate
	JobView         = JobRead
	JobEdit         = JobUpdate
	ApplicationView = ApplicationRead
	CandidateView   = CandidateRead
	CandidateEdit   = CandidateUpdate
	OfferView       = OfferRead
)

var allPermissions = []Permission{
	OrgCreate, OrgRead, OrgUpdate, OrgDelete, OrgManageUsers, OrgManageBilling, OrgManageSettings, OrgAdmin,
	JobCreate, JobRead, JobUpdate, JobDelete, JobPublish, JobClose,
	ApplicationRead, ApplicationUpdate, ApplicationReview, ApplicationAdvance, ApplicationReject, ApplicationDelete,
	CandidateCreate, CandidateRead, CandidateUpdate, CandidateDelete, CandidateExport,
	OfferCreate, OfferRead, OfferUpdate, OfferApprove, OfferSend, OfferRevoke,
	InterviewSchedule, InterviewConduct, InterviewFeedback,
	ReportView, ReportExport, ReportCompliance, AnalyticsView,
	UserInvite, UserManage, UserRemove,
	SettingsView, SettingsEdit,
	SystemAdmin, SystemAudit,
}

var knownPermissions = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// aliasSpellings maps alternative wire spellings onto canonical permissions.
var aliasSpellings = map[string]Permission{
	"org:view":         OrgRead,
	"org:edit":         OrgUpdate,
	"job:view":         JobRead,
	"job:edit":         JobUpdate,
	"application:view": ApplicationRead,
	"candidate:view":   CandidateRead,
	"candidate:edit":   CandidateUpdate,
	"offer:view":       OfferRead,
}

// AllPermissions returns the full catalogue in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission resolves a canonical identifier or a known alias spelling.
func ParsePermission(s string) (Permission, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := aliasSpellings[s]; ok {
		return canonical, nil
	}
	p := Permission(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown permission")
	}
	return p, nil
}

func (p Permission) IsValid() bool {
	_, ok := knownPermissions[p]
	return ok
}

func (p Permission) String() string { return string(p) }

// Resource returns the part before the colon, e.g. "job" for "job:read".
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the part after the colon, e.g. "read" for "job:read".
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}
