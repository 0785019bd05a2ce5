package membership

import (
	"context"
	"fmt"
	"sync"

	"talentgate/internal/authz/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

type key struct {
	user id.UserID
	org  id.OrganizationID
}

// InMemory stores memberships in memory for tests/dev.
type InMemory struct {
	mu          sync.RWMutex
	memberships map[key]models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{memberships: make(map[key]models.Membership)}
}

// Add inserts a membership. A user holds at most one role per organization.
func (s *InMemory) Add(_ context.Context, m *models.Membership) error {
	if m == nil {
		return fmt.Errorf("membership is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{user: m.UserID, org: m.OrganizationID}
	if _, exists := s.memberships[k]; exists {
		return fmt.Errorf("membership already exists: %w", sentinel.ErrConflict)
	}
	s.memberships[k] = *m
	return nil
}

// Find returns the user's membership in exactly one organization.
func (s *InMemory) Find(_ context.Context, userID id.UserID, orgID id.OrganizationID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[key{user: userID, org: orgID}]
	if !ok {
		return nil, fmt.Errorf("membership not found: %w", sentinel.ErrNotFound)
	}
	return &m, nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Membership, 0)
	for k, m := range s.memberships {
		if k.user == userID {
			c := m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *InMemory) UpdateRole(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{user: m.UserID, org: m.OrganizationID}
	existing, ok := s.memberships[k]
	if !ok {
		return fmt.Errorf("membership not found: %w", sentinel.ErrNotFound)
	}
	existing.Role = m.Role
	s.memberships[k] = existing
	return nil
}

func (s *InMemory) Remove(_ context.Context, userID id.UserID, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{user: userID, org: orgID}
	if _, ok := s.memberships[k]; !ok {
		return fmt.Errorf("membership not found: %w", sentinel.ErrNotFound)
	}
	delete(s.memberships, k)
	return nil
}
