package citizen

import (
	"context"
	"sync"

	"civictrust/internal/identity/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
)

// InMemory is a process-local citizen store for tests and dev mode.
type InMemory struct {
	mu       sync.RWMutex
	citizens map[domain.CitizenID]models.Citizen
}

func NewInMemory() *InMemory {
	return &InMemory{citizens: make(map[domain.CitizenID]models.Citizen)}
}

func (s *InMemory) Create(_ context.Context, c *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.citizens[c.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.citizens[c.ID] = clone(c)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.CitizenID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&c)
	return &out, nil
}

// FindByIDForUpdate is FindByID; in memory the caller's tx runner provides
// the lock.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	return s.FindByID(ctx, id)
}

// UpdateStanding writes c if the stored version still equals
// expectedVersion.
func (s *InMemory) UpdateStanding(_ context.Context, c *models.Citizen, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.citizens[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	current.ReputationScore = c.ReputationScore
	current.Version = c.Version
	current.UpdatedAt = c.UpdatedAt
	s.citizens[c.ID] = current
	return nil
}

func clone(c *models.Citizen) models.Citizen {
	out := *c
	if c.GeoAnchor != nil {
		anchor := *c.GeoAnchor
		out.GeoAnchor = &anchor
	}
	return out
}
