// Package store holds the persistence shared by the authorization stores.
//
// Error Contract (all stores under this directory):
//   - wrap sentinel.ErrNotFound when the requested row does not exist
//   - wrap sentinel.ErrConflict on a uniqueness violation
//   - wrap any other failure with context; callers treat it as infrastructure
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
