package session

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

type PostgresSessionStoreSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresSessionStoreSuite))
}

func (s *PostgresSessionStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.store = NewPostgres(db)
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresSessionStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *PostgresSessionStoreSuite) sessionRow(session *models.Session) *sqlmock.Rows {
	var revokedAt any
	if session.RevokedAt != nil {
		revokedAt = *session.RevokedAt
	}
	return sqlmock.NewRows([]string{
		"id", "user_id", "refresh_token_jti", "ip_address", "user_agent", "device_display_name",
		"created_at", "expires_at", "revoked_at",
	}).AddRow(
		session.ID.String(), session.UserID.String(), session.RefreshTokenJTI, session.IPAddress,
		session.UserAgent, session.DeviceDisplayName, session.CreatedAt, session.ExpiresAt, revokedAt,
	)
}

func (s *PostgresSessionStoreSuite) sample() *models.Session {
	return &models.Session{
		ID:                id.NewSessionID(),
		UserID:            id.NewUserID(),
		RefreshTokenJTI:   "jti-1",
		IPAddress:         "10.0.0.1",
		UserAgent:         "Mozilla/5.0",
		DeviceDisplayName: "Chrome on macOS",
		CreatedAt:         s.now,
		ExpiresAt:         s.now.Add(time.Hour),
	}
}

func (s *PostgresSessionStoreSuite) TestCreate() {
	session := s.sample()

	s.Run("inserts row", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
			WithArgs(session.ID.String(), session.UserID.String(), "jti-1", "10.0.0.1", "Mozilla/5.0",
				"Chrome on macOS", s.now, s.now.Add(time.Hour), nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.NoError(s.store.Create(s.ctx, session))
	})

	s.Run("unique violation maps to conflict", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
		s.ErrorIs(s.store.Create(s.ctx, session), sentinel.ErrConflict)
	})
}

func (s *PostgresSessionStoreSuite) TestFindByID() {
	session := s.sample()

	s.Run("found", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1")).
			WithArgs(session.ID.String()).
			WillReturnRows(s.sessionRow(session))
		found, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(session, found)
	})

	s.Run("no rows maps to not found", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1")).
			WillReturnError(sql.ErrNoRows)
		_, err := s.store.FindByID(s.ctx, session.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("driver errors are not mistaken for not found", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1")).
			WillReturnError(errors.New("connection reset"))
		_, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().Error(err)
		s.NotErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresSessionStoreSuite) TestFindByRefreshJTI() {
	session := s.sample()
	revokedAt := s.now.Add(time.Minute)
	session.RevokedAt = &revokedAt

	s.mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE refresh_token_jti = $1")).
		WithArgs("jti-1").
		WillReturnRows(s.sessionRow(session))

	found, err := s.store.FindByRefreshJTI(s.ctx, "jti-1")
	s.Require().NoError(err)
	s.Require().NotNil(found.RevokedAt)
	s.Equal(revokedAt, *found.RevokedAt)
}

func (s *PostgresSessionStoreSuite) TestListByUser() {
	session := s.sample()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE user_id = $1")).
		WithArgs(session.UserID.String()).
		WillReturnRows(s.sessionRow(session))

	sessions, err := s.store.ListByUser(s.ctx, session.UserID)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *PostgresSessionStoreSuite) TestRevokeSessionIfActive() {
	sessionID := id.NewSessionID()
	update := regexp.QuoteMeta("UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL")
	exists := regexp.QuoteMeta("SELECT EXISTS")

	s.Run("revokes live session", func() {
		s.mock.ExpectExec(update).WithArgs(sessionID.String(), s.now).WillReturnResult(sqlmock.NewResult(0, 1))
		s.NoError(s.store.RevokeSessionIfActive(s.ctx, sessionID, s.now))
	})

	s.Run("already revoked", func() {
		s.mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		s.mock.ExpectQuery(exists).WithArgs(sessionID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		s.ErrorIs(s.store.RevokeSessionIfActive(s.ctx, sessionID, s.now), ErrSessionRevoked)
	})

	s.Run("missing session", func() {
		s.mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		s.mock.ExpectQuery(exists).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.ErrorIs(s.store.RevokeSessionIfActive(s.ctx, sessionID, s.now), sentinel.ErrNotFound)
	})
}

func (s *PostgresSessionStoreSuite) TestDeleteExpiredSessions() {
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at <= $1")).
		WithArgs(s.now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := s.store.DeleteExpiredSessions(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(3, deleted)
}
