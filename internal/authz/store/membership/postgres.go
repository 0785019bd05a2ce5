package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"talentgate/internal/authz/models"
	"talentgate/internal/authz/rbac"
	"talentgate/internal/authz/store"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

const membershipColumns = `user_id, organization_id, role, created_at`

// PostgresStore persists memberships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, m *models.Membership) error {
	if m == nil {
		return fmt.Errorf("membership is required")
	}
	query := `
		INSERT INTO organization_memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(m.UserID), uuid.UUID(m.OrganizationID), string(m.Role), m.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("membership already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID, orgID id.OrganizationID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM organization_memberships WHERE user_id = $1 AND organization_id = $2`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, uuid.UUID(userID), uuid.UUID(orgID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM organization_memberships WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateRole(ctx context.Context, m *models.Membership) error {
	query := `UPDATE organization_memberships SET role = $3 WHERE user_id = $1 AND organization_id = $2`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(m.UserID), uuid.UUID(m.OrganizationID), string(m.Role))
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	return requireAffected(res, "update membership role")
}

func (s *PostgresStore) Remove(ctx context.Context, userID id.UserID, orgID id.OrganizationID) error {
	query := `DELETE FROM organization_memberships WHERE user_id = $1 AND organization_id = $2`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), uuid.UUID(orgID))
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return requireAffected(res, "remove membership")
}

func requireAffected(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("membership not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type membershipRow interface {
	Scan(dest ...any) error
}

func scanMembership(row membershipRow) (*models.Membership, error) {
	var m models.Membership
	var userID, orgID uuid.UUID
	var role string
	if err := row.Scan(&userID, &orgID, &role, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.UserID = id.UserID(userID)
	m.OrganizationID = id.OrganizationID(orgID)
	m.Role = rbac.Role(role)
	return &m, nil
}
