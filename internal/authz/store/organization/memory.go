package organization

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"talentgate/internal/authz/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

// InMemory stores organizations in memory for tests/dev.
type InMemory struct {
	mu          sync.RWMutex
	orgs        map[id.OrganizationID]*models.Organization
	slugIdx     map[string]id.OrganizationID
	externalIdx map[string]id.OrganizationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		orgs:        make(map[id.OrganizationID]*models.Organization),
		slugIdx:     make(map[string]id.OrganizationID),
		externalIdx: make(map[string]id.OrganizationID),
	}
}

// Create inserts the organization if its id, slug and external id are free.
func (s *InMemory) Create(_ context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orgs[org.ID]; exists {
		return fmt.Errorf("organization already exists: %w", sentinel.ErrConflict)
	}
	slug := strings.ToLower(org.Slug)
	if _, exists := s.slugIdx[slug]; exists {
		return fmt.Errorf("organization slug must be unique: %w", sentinel.ErrConflict)
	}
	if org.ExternalID != "" {
		if _, exists := s.externalIdx[org.ExternalID]; exists {
			return fmt.Errorf("organization external id must be unique: %w", sentinel.ErrConflict)
		}
		s.externalIdx[org.ExternalID] = org.ID
	}
	c := *org
	s.orgs[org.ID] = &c
	s.slugIdx[slug] = org.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(orgID)
}

// FindBySlug retrieves an organization by slug (case-insensitive).
func (s *InMemory) FindBySlug(_ context.Context, slug string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.slugIdx[strings.ToLower(slug)]
	if !ok {
		return nil, fmt.Errorf("organization not found: %w", sentinel.ErrNotFound)
	}
	return s.lookupLocked(orgID)
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.externalIdx[externalID]
	if !ok || externalID == "" {
		return nil, fmt.Errorf("organization not found: %w", sentinel.ErrNotFound)
	}
	return s.lookupLocked(orgID)
}

func (s *InMemory) lookupLocked(orgID id.OrganizationID) (*models.Organization, error) {
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("organization not found: %w", sentinel.ErrNotFound)
	}
	c := *org
	return &c, nil
}
