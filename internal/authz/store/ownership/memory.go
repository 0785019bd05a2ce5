package ownership

import (
	"context"
	"fmt"
	"sync"

	"talentgate/internal/authz/models"
	"talentgate/internal/sentinel"
	id "talentgate/pkg/domain"
)

type key struct {
	org  id.OrganizationID
	kind models.ResourceKind
	res  id.ResourceID
}

// InMemory records contextual assignments (job hiring managers, department
// heads) in memory for tests/dev.
type InMemory struct {
	mu       sync.RWMutex
	assigned map[key]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{assigned: make(map[key]id.UserID)}
}

// Assign records userID against the resource, replacing any previous holder.
func (s *InMemory) Assign(_ context.Context, a *models.Assignment) error {
	if a == nil || a.Resource.IsZero() || a.UserID.IsNil() || a.OrganizationID.IsNil() {
		return fmt.Errorf("incomplete assignment: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned[key{org: a.OrganizationID, kind: a.Resource.Kind, res: a.Resource.ID}] = a.UserID
	return nil
}

// FindAssignee returns the user recorded against the resource inside orgID.
// A resource of another organization is reported as not found.
func (s *InMemory) FindAssignee(_ context.Context, orgID id.OrganizationID, ref models.ResourceRef) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.assigned[key{org: orgID, kind: ref.Kind, res: ref.ID}]
	if !ok {
		return id.UserID{}, fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	return userID, nil
}

func (s *InMemory) Unassign(_ context.Context, orgID id.OrganizationID, ref models.ResourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{org: orgID, kind: ref.Kind, res: ref.ID}
	if _, ok := s.assigned[k]; !ok {
		return fmt.Errorf("assignment not found: %w", sentinel.ErrNotFound)
	}
	delete(s.assigned, k)
	return nil
}
