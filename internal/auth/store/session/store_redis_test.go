package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

// RedisStoreSuite runs the Redis store against an in-process server.
type RedisStoreSuite struct {
	suite.Suite
	server *miniredis.Miniredis
	client *redis.Client
	store  *RedisStore
	ctx    context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.server.Addr()})
	s.store = NewRedis(s.client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *RedisStoreSuite) TearDownTest() {
	s.client.Close()
}

func (s *RedisStoreSuite) newSession(userID id.UserID, ttl time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:              id.NewSessionID(),
		UserID:          userID,
		RefreshTokenJTI: id.NewSessionID().String(),
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

func (s *RedisStoreSuite) TestCreate() {
	s.Run("indexes by refresh jti", func() {
		session := s.newSession(id.NewUserID(), time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, session))

		found, err := s.store.FindByRefreshJTI(s.ctx, session.RefreshTokenJTI)
		s.Require().NoError(err)
		s.Equal(session.ID, found.ID)
		s.True(found.IsLive(time.Now()))
	})

	s.Run("duplicate id conflicts", func() {
		session := s.newSession(id.NewUserID(), time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, session))

		s.ErrorIs(s.store.Create(s.ctx, session), sentinel.ErrConflict)
	})

	s.Run("expired session is rejected", func() {
		session := s.newSession(id.NewUserID(), -time.Minute)

		s.ErrorIs(s.store.Create(s.ctx, session), sentinel.ErrInvalidInput)
		s.False(s.server.Exists(sessionKey(session.ID)))
	})
}

func (s *RedisStoreSuite) TestListByUserReturnsEverySession() {
	userID := id.NewUserID()
	for range 150 {
		s.Require().NoError(s.store.Create(s.ctx, s.newSession(userID, time.Hour)))
	}
	s.Require().NoError(s.store.Create(s.ctx, s.newSession(id.NewUserID(), time.Hour)))

	sessions, err := s.store.ListByUser(s.ctx, userID)

	s.Require().NoError(err)
	s.Len(sessions, 150)
}

func (s *RedisStoreSuite) TestUserIndexOutlivesLongestSession() {
	userID := id.NewUserID()
	long := s.newSession(userID, 30*24*time.Hour)
	short := s.newSession(userID, 7*24*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, long))
	s.Require().NoError(s.store.Create(s.ctx, short))

	s.Greater(s.server.TTL(userSessionsKey(userID)), 30*24*time.Hour)

	s.server.FastForward(8 * 24 * time.Hour)

	sessions, err := s.store.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(long.ID, sessions[0].ID)
}

func (s *RedisStoreSuite) TestRevokeLeavesUserIndex() {
	userID := id.NewUserID()
	revoked := s.newSession(userID, time.Hour)
	kept := s.newSession(userID, time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, revoked))
	s.Require().NoError(s.store.Create(s.ctx, kept))

	s.Require().NoError(s.store.RevokeSessionIfActive(s.ctx, revoked.ID, time.Now()))
	s.ErrorIs(s.store.RevokeSessionIfActive(s.ctx, revoked.ID, time.Now()), ErrSessionRevoked)

	members, err := s.client.SMembers(s.ctx, userSessionsKey(userID)).Result()
	s.Require().NoError(err)
	s.Equal([]string{kept.ID.String()}, members)

	found, err := s.store.FindByID(s.ctx, revoked.ID)
	s.Require().NoError(err)
	s.NotNil(found.RevokedAt)
	s.Greater(s.server.TTL(sessionKey(revoked.ID)), time.Duration(0))
}

func (s *RedisStoreSuite) TestDeleteExpiredSessionsPrunesIndex() {
	userID := id.NewUserID()
	s.Require().NoError(s.store.Create(s.ctx, s.newSession(userID, time.Hour)))
	s.Require().NoError(s.store.Create(s.ctx, s.newSession(userID, 3*time.Hour)))

	s.server.FastForward(2 * time.Hour)

	pruned, err := s.store.DeleteExpiredSessions(s.ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(1, pruned)

	members, err := s.client.SMembers(s.ctx, userSessionsKey(userID)).Result()
	s.Require().NoError(err)
	s.Len(members, 1)
}
