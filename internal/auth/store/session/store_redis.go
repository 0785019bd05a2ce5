package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
	refreshKeyPrefix     = "session_refresh:"

	// userIndexGrace keeps the user index around slightly longer than the
	// longest session it lists.
	userIndexGrace = time.Hour

	// maxRevokeAttempts bounds optimistic-lock retries on contended revocations.
	maxRevokeAttempts = 5
)

// createSessionScript writes the session, its refresh index entry and its
// user index entry in one step. The user index TTL only ever grows, so a
// short session never expires the index under a longer one.
//
// Returns 0 when the session key already exists, 1 otherwise.
var createSessionScript = redis.NewScript(`
local ttl = tonumber(ARGV[3])
local indexTTL = tonumber(ARGV[4])

if not redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl, 'NX') then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
redis.call('SADD', KEYS[3], ARGV[2])
if redis.call('PTTL', KEYS[3]) < indexTTL then
	redis.call('PEXPIRE', KEYS[3], indexTTL)
end
return 1
`)

type sessionJSON struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	RefreshTokenJTI   string `json:"refresh_token_jti"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	DeviceDisplayName string `json:"device_display_name"`
	CreatedAt         int64  `json:"created_at"`           // Unix nano
	ExpiresAt         int64  `json:"expires_at"`           // Unix nano
	RevokedAt         *int64 `json:"revoked_at,omitempty"` // Unix nano
}

func sessionToJSON(s *models.Session) *sessionJSON {
	j := &sessionJSON{
		ID:                s.ID.String(),
		UserID:            s.UserID.String(),
		RefreshTokenJTI:   s.RefreshTokenJTI,
		IPAddress:         s.IPAddress,
		UserAgent:         s.UserAgent,
		DeviceDisplayName: s.DeviceDisplayName,
		CreatedAt:         s.CreatedAt.UnixNano(),
		ExpiresAt:         s.ExpiresAt.UnixNano(),
	}
	if s.RevokedAt != nil {
		ts := s.RevokedAt.UnixNano()
		j.RevokedAt = &ts
	}
	return j
}

func sessionFromJSON(j *sessionJSON) (*models.Session, error) {
	sessionID, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	userID, err := uuid.Parse(j.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	s := &models.Session{
		ID:                id.SessionID(sessionID),
		UserID:            id.UserID(userID),
		RefreshTokenJTI:   j.RefreshTokenJTI,
		IPAddress:         j.IPAddress,
		UserAgent:         j.UserAgent,
		DeviceDisplayName: j.DeviceDisplayName,
		CreatedAt:         time.Unix(0, j.CreatedAt),
		ExpiresAt:         time.Unix(0, j.ExpiresAt),
	}
	if j.RevokedAt != nil {
		t := time.Unix(0, *j.RevokedAt)
		s.RevokedAt = &t
	}
	return s, nil
}

func decodeSession(data string) (*models.Session, error) {
	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j)
}

// RedisStore persists sessions in Redis for deployments where several
// instances share session state. Keys expire with the session.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func sessionKey(sessionID id.SessionID) string { return sessionKeyPrefix + sessionID.String() }
func userSessionsKey(userID id.UserID) string  { return userSessionKeyPrefix + userID.String() }
func refreshKey(jti string) string             { return refreshKeyPrefix + jti }

func (s *RedisStore) ttlFor(session *models.Session) time.Duration {
	return session.ExpiresAt.Sub(s.now())
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	ttl := s.ttlFor(session)
	if ttl < time.Millisecond {
		return fmt.Errorf("session already expired: %w", sentinel.ErrInvalidInput)
	}

	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	keys := []string{
		sessionKey(session.ID),
		refreshKey(session.RefreshTokenJTI),
		userSessionsKey(session.UserID),
	}
	created, err := createSessionScript.Run(ctx, s.client, keys,
		data,
		session.ID.String(),
		ttl.Milliseconds(),
		(ttl + userIndexGrace).Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("session already exists: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return decodeSession(data)
}

func (s *RedisStore) FindByRefreshJTI(ctx context.Context, jti string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, refreshKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session by refresh jti: %w", err)
	}
	sessionID, err := id.ParseSessionID(raw)
	if err != nil {
		return nil, fmt.Errorf("parse indexed session id: %w", err)
	}
	return s.FindByID(ctx, sessionID)
}

// ListByUser returns every indexed session of the user. Revoked sessions
// leave the index when they are revoked, so only live or just-expired
// records are returned.
func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	userKey := userSessionsKey(userID)
	sessionIDs, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids by user: %w", err)
	}
	if len(sessionIDs) == 0 {
		return []*models.Session{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, sessionKeyPrefix+sid)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get sessions by user: %w", err)
	}

	sessions := make([]*models.Session, 0, len(sessionIDs))
	stale := make([]any, 0)
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, sessionIDs[i])
			continue
		}
		session, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune user session index: %w", err)
		}
	}
	return sessions, nil
}

// RevokeSessionIfActive uses WATCH/MULTI so a concurrent revoke or refresh
// observes either the live or the revoked record, never a partial write.
// The session leaves its user index in the same transaction.
func (s *RedisStore) RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	key := sessionKey(sessionID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session for revoke: %w", err)
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if !session.Revoke(now) {
			return ErrSessionRevoked
		}
		updated, err := json.Marshal(sessionToJSON(session))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
			pipe.SRem(ctx, userSessionsKey(session.UserID), session.ID.String())
			return nil
		})
		return err
	}

	for range maxRevokeAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("revoke session: %w", redis.TxFailedErr)
}

// DeleteExpiredSessions prunes user index entries whose session key has
// already expired. Session and refresh keys themselves expire via TTL.
func (s *RedisStore) DeleteExpiredSessions(ctx context.Context, _ time.Time) (int, error) {
	pruned := 0
	iter := s.client.Scan(ctx, 0, userSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		members, err := s.client.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("list user sessions: %w", err)
		}
		for _, sid := range members {
			exists, err := s.client.Exists(ctx, sessionKeyPrefix+sid).Result()
			if err != nil {
				return pruned, fmt.Errorf("check session exists: %w", err)
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, userKey, sid).Err(); err != nil {
					return pruned, fmt.Errorf("prune user session index: %w", err)
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("scan user session indexes: %w", err)
	}
	return pruned, nil
}
