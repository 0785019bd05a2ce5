package ownership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"talentgate/internal/authz/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

// PostgresStore persists contextual assignments in resource_assignments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Assign(ctx context.Context, a *models.Assignment) error {
	if a == nil || a.Resource.IsZero() || a.UserID.IsNil() || a.OrganizationID.IsNil() {
		return fmt.Errorf("incomplete assignment: %w", sentinel.ErrInvalidInput)
	}
	query := `
		INSERT INTO resource_assignments (organization_id, resource_kind, resource_id, user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, resource_kind, resource_id) DO UPDATE SET user_id = EXCLUDED.user_id
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(a.OrganizationID), string(a.Resource.Kind), uuid.UUID(a.Resource.ID), uuid.UUID(a.UserID))
	if err != nil {
		return fmt.Errorf("assign resource: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAssignee(ctx context.Context, orgID id.OrganizationID, ref models.ResourceRef) (id.UserID, error) {
	query := `
		SELECT user_id FROM resource_assignments
		WHERE organization_id = $1 AND resource_kind = $2 AND resource_id = $3
	`
	var userID uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), string(ref.Kind), uuid.UUID(ref.ID)).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.UserID{}, fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
		}
		return id.UserID{}, fmt.Errorf("find assignee: %w", err)
	}
	return id.UserID(userID), nil
}

func (s *PostgresStore) Unassign(ctx context.Context, orgID id.OrganizationID, ref models.ResourceRef) error {
	query := `
		DELETE FROM resource_assignments
		WHERE organization_id = $1 AND resource_kind = $2 AND resource_id = $3
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(orgID), string(ref.Kind), uuid.UUID(ref.ID))
	if err != nil {
		return fmt.Errorf("unassign resource: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unassign resource rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
