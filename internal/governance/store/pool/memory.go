// Package pool holds signature pool stores. Every implementation provides
// the same two atomic primitives: append-if-not-duplicate-and-not-sealed and
// compare-and-seal.
package pool

import (
	"context"
	"sort"
	"sync"
	"time"

	"civictrust/internal/governance/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
)

// InMemory is a single-process pool store for tests and dev mode.
type InMemory struct {
	mu    sync.Mutex
	pools map[domain.PoolID]*models.Pool
	// signers indexes who endorsed each complaint, across regions.
	signers map[domain.ComplaintID]map[domain.CitizenID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		pools:   make(map[domain.PoolID]*models.Pool),
		signers: make(map[domain.ComplaintID]map[domain.CitizenID]struct{}),
	}
}

func (s *InMemory) Append(_ context.Context, rec models.SignatureRecord, openedAt time.Time, maxLeaves int) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.PoolIDFor(rec.RegionSlug, rec.TargetComplaintID)
	p, ok := s.pools[id]
	if ok && p.IsSealed() {
		return nil, sentinel.ErrInvalidState
	}
	if _, dup := s.signers[rec.TargetComplaintID][rec.CitizenID]; dup {
		return nil, sentinel.ErrDuplicate
	}
	if ok && maxLeaves > 0 && p.LeafCount() >= maxLeaves {
		return nil, sentinel.ErrCapacity
	}
	if !ok {
		p = models.NewPool(rec.RegionSlug, rec.TargetComplaintID, openedAt)
		s.pools[id] = p
	}
	p.Ingest(rec)

	if s.signers[rec.TargetComplaintID] == nil {
		s.signers[rec.TargetComplaintID] = make(map[domain.CitizenID]struct{})
	}
	s.signers[rec.TargetComplaintID][rec.CitizenID] = struct{}{}
	return p.Clone(), nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.PoolID) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Snapshot, 0)
	for _, p := range s.pools {
		if filter.Matches(p) {
			out = append(out, p.Snapshot())
		}
	}
	sortSnapshots(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemory) CompareAndSeal(_ context.Context, id domain.PoolID, expectedLeafCount int, root domain.HexDigest, sealedAt time.Time) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.IsSealed() {
		return nil, sentinel.ErrInvalidState
	}
	if p.LeafCount() != expectedLeafCount {
		return nil, sentinel.ErrConflict
	}
	p.Seal(root, sealedAt)
	return p.Clone(), nil
}

// sortSnapshots orders listings newest first, then by ID for stability.
func sortSnapshots(out []models.Snapshot) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].PoolID.String() < out[j].PoolID.String()
	})
}
