package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"talentgate/internal/auth/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

// Error Contract:
// - wrap sentinel.ErrNotFound when the requested user does not exist
// - wrap sentinel.ErrConflict when email, username or external id is taken
// - wrap any other failure with context

// InMemoryUserStore stores users in memory for tests/dev.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

// New constructs an empty in-memory user store.
func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

// Create inserts a user, enforcing the same uniqueness rules as the schema.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user already exists: %w", sentinel.ErrConflict)
	}
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

// Update replaces an existing user.
func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *InMemoryUserStore) checkUniqueLocked(user *models.User) error {
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username ||
			(user.ExternalID != "" && existing.ExternalID == user.ExternalID) {
			return fmt.Errorf("user already exists: %w", sentinel.ErrConflict)
		}
	}
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		c := *user
		return &c, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findBy(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findBy(func(u *models.User) bool { return u.Username == username })
}

func (s *InMemoryUserStore) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return s.findBy(func(u *models.User) bool { return u.ExternalID == externalID })
}

func (s *InMemoryUserStore) findBy(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if match(user) {
			c := *user
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}
