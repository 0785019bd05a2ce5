package session

import (
	"fmt"

	"talentgate/internal/sentinel"
)

// ErrSessionRevoked is returned by RevokeSessionIfActive when the session was
// already revoked. Callers that treat revocation as idempotent ignore it.
var ErrSessionRevoked = fmt.Errorf("session has been revoked: %w", sentinel.ErrAlreadyUsed)

// Error Contract:
// All store implementations follow this pattern:
// - wrap sentinel.ErrNotFound when the requested session does not exist
// - return ErrSessionRevoked from RevokeSessionIfActive on an already revoked session
// - wrap any other failure with context; callers treat it as infrastructure
