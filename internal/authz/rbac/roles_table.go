package rbac

// DefaultRolePermissions is the literal role table. Sets are flattened by
// hand rather than derived from a hierarchy so each one can be audited on
// its own.
func DefaultRolePermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleOwner: AllPermissions(),
		RoleAdmin: {
			OrgRead, OrgUpdate, OrgManageUsers, OrgManageSettings,
			JobCreate, JobRead, JobUpdate, JobDelete, JobPublish, JobClose,
			ApplicationRead, ApplicationUpdate, ApplicationReview, ApplicationAdvance, ApplicationReject, ApplicationDelete,
			CandidateRead, CandidateUpdate, CandidateDelete, CandidateExport,
			OfferCreate, OfferRead, OfferUpdate, OfferSend, OfferRevoke,
			InterviewSchedule, InterviewConduct, InterviewFeedback,
			ReportView, ReportExport, ReportCompliance,
			UserInvite, UserManage, UserRemove,
		},
		RoleHeadOfTalent: {
			OrgRead,
			JobCreate, JobRead, JobUpdate, JobPublish, JobClose,
			ApplicationRead, ApplicationUpdate, ApplicationReview, ApplicationAdvance, ApplicationReject,
			CandidateRead, CandidateUpdate, CandidateExport,
			OfferCreate, OfferRead, OfferUpdate, OfferSend,
			InterviewSchedule, InterviewConduct, InterviewFeedback,
			ReportView, ReportExport,
			UserInvite,
		},
		RoleRecruiter: {
			OrgRead,
			JobCreate, JobRead, JobUpdate,
			ApplicationRead, ApplicationUpdate, ApplicationReview, ApplicationAdvance, ApplicationReject,
			CandidateRead, CandidateUpdate,
			InterviewSchedule, InterviewConduct, InterviewFeedback,
			ReportView,
		},
		RoleHiringManager: {
			OrgRead,
			JobRead, JobUpdate,
			ApplicationRead, ApplicationReview, ApplicationAdvance, ApplicationReject,
			CandidateRead,
			InterviewConduct, InterviewFeedback,
			ReportView,
		},
		RoleManager: {
			OrgRead,
			JobRead,
			ApplicationRead, ApplicationReview,
			CandidateRead,
			InterviewConduct, InterviewFeedback,
			ReportView,
		},
		RoleInterviewer: {
			OrgRead,
			JobRead,
			ApplicationRead,
			CandidateRead,
			InterviewConduct, InterviewFeedback,
		},
		RoleMember: {
			OrgRead,
			JobRead,
			ApplicationRead,
			CandidateRead,
			ReportView,
		},
		RoleViewer: {
			OrgRead,
			JobRead,
			ApplicationRead,
			CandidateRead,
		},
		// External agency recruiters: may source candidates, nothing else.
		RoleContractor: {
			OrgRead,
			JobRead,
			ApplicationRead,
			CandidateRead, CandidateCreate,
		},
	}
}

// HiringManagerGrants is what the recorded hiring manager of a job may do
// on that job regardless of organization role.
func HiringManagerGrants() PermissionSet {
	return NewPermissionSet(
		JobRead, JobUpdate,
		ApplicationRead, ApplicationReview, ApplicationAdvance, ApplicationReject,
		CandidateRead,
		InterviewConduct, InterviewFeedback,
	)
}

// DepartmentHeadGrants is what the recorded head of a department may do on
// that department's hiring.
func DepartmentHeadGrants() PermissionSet {
	return NewPermissionSet(
		JobRead,
		ApplicationRead, ApplicationReview,
		CandidateRead,
		ReportView,
	)
}
