package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"talentgate/internal/authz/models"
	"talentgate/internal/authz/store"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

const organizationColumns = `id, name, slug, external_id, created_at`

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(org.ID),
		org.Name,
		org.Slug,
		sql.NullString{String: org.ExternalID, Valid: org.ExternalID != ""},
		org.CreatedAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("organization slug or external id taken: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return s.findOne(ctx, "find organization by id", query, uuid.UUID(orgID))
}

// FindBySlug retrieves an organization by slug (case-insensitive).
func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE lower(slug) = lower($1)`
	return s.findOne(ctx, "find organization by slug", query, slug)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE external_id = $1`
	return s.findOne(ctx, "find organization by external id", query, externalID)
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return org, nil
}

type organizationRow interface {
	Scan(dest ...any) error
}

func scanOrganization(row organizationRow) (*models.Organization, error) {
	var org models.Organization
	var orgID uuid.UUID
	var externalID sql.NullString
	if err := row.Scan(&orgID, &org.Name, &org.Slug, &externalID, &org.CreatedAt); err != nil {
		return nil, err
	}
	org.ID = id.OrganizationID(orgID)
	org.ExternalID = externalID.String
	return &org, nil
}
