package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

const pgUniqueViolation = "23505"

const userColumns = `id, email, username, password_hash, first_name, last_name, user_type,
	is_active, email_verified, workos_user_id, last_login_at, created_at, updated_at`

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(user.ID), user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		string(user.UserType), user.IsActive, user.EmailVerified, nullString(user.ExternalID),
		nullTime(user.LastLoginAt), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return translateWriteError(err, "create user")
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $2, username = $3, password_hash = $4, first_name = $5, last_name = $6,
			user_type = $7, is_active = $8, email_verified = $9, workos_user_id = $10, last_login_at = $11,
			updated_at = $12
		WHERE id = $1`,
		uuid.UUID(user.ID), user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		string(user.UserType), user.IsActive, user.EmailVerified, nullString(user.ExternalID),
		nullTime(user.LastLoginAt), user.UpdatedAt,
	)
	if err != nil {
		return translateWriteError(err, "update user")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, "id = $1", uuid.UUID(userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "lower(email) = lower($1)", email)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, "username = $1", username)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return s.findOne(ctx, "workos_user_id = $1", externalID)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)

	var (
		userID      uuid.UUID
		userType    string
		externalID  sql.NullString
		lastLoginAt sql.NullTime
		user        models.User
	)
	err := row.Scan(&userID, &user.Email, &user.Username, &user.PasswordHash, &user.FirstName, &user.LastName,
		&userType, &user.IsActive, &user.EmailVerified, &externalID, &lastLoginAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.UserID(userID)
	user.UserType = models.UserType(userType)
	user.ExternalID = externalID.String
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

func translateWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("user already exists: %w", sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
