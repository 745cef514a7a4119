package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"civictrust/internal/governance/models"
	"civictrust/pkg/domain"
	"civictrust/pkg/platform/sentinel"
)

type poolStore interface {
	Append(ctx context.Context, rec models.SignatureRecord, openedAt time.Time, maxLeaves int) (*models.Pool, error)
	FindByID(ctx context.Context, id domain.PoolID) (*models.Pool, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Snapshot, error)
	CompareAndSeal(ctx context.Context, id domain.PoolID, expectedLeafCount int, root domain.HexDigest, sealedAt time.Time) (*models.Pool, error)
}

// PoolStoreSuite runs the same contract against every store.
type PoolStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) poolStore
	store    poolStore
	ctx      context.Context
	now      time.Time
	target   domain.ComplaintID
}

func TestInMemoryPoolStore(t *testing.T) {
	suite.Run(t, &PoolStoreSuite{newStore: func(*testing.T) poolStore { return NewInMemory() }})
}

func TestRedisPoolStore(t *testing.T) {
	suite.Run(t, &PoolStoreSuite{newStore: func(t *testing.T) poolStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedis(client)
	}})
}

func (s *PoolStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.target = domain.ComplaintID(uuid.New())
}

func (s *PoolStoreSuite) record(region domain.RegionSlug, level domain.AssuranceLevel) models.SignatureRecord {
	citizen := domain.CitizenID(uuid.New())
	leaf, err := models.LeafHash(citizen, s.target, region, level, s.now)
	s.Require().NoError(err)
	rec, err := models.SignatureIntent{
		CitizenID:         citizen,
		AssuranceLevel:    level,
		RegionSlug:        region,
		TargetComplaintID: s.target,
		LeafHash:          leaf,
		SignedAt:          s.now,
	}.Record()
	s.Require().NoError(err)
	return rec
}

func (s *PoolStoreSuite) TestAppend() {
	s.Run("first signature opens the pool", func() {
		rec := s.record("pt-lisboa", domain.AssuranceDocumentVerified)
		p, err := s.store.Append(s.ctx, rec, s.now, 0)
		s.Require().NoError(err)
		s.Equal(domain.PoolIDFor("pt-lisboa", s.target), p.ID)
		s.Equal(models.StatusOpen, p.Status)
		s.Equal(5, p.TotalWeight)
		s.Require().Len(p.Signatures, 1)
		s.Equal(rec.LeafHash, p.Signatures[0].LeafHash)
		s.True(p.OpenedAt.Equal(s.now))
	})

	s.Run("signatures keep arrival order and accumulate weight", func() {
		second := s.record("pt-lisboa", domain.AssuranceSovereignVerified)
		third := s.record("pt-lisboa", domain.AssuranceUnverified)
		_, err := s.store.Append(s.ctx, second, s.now, 0)
		s.Require().NoError(err)
		p, err := s.store.Append(s.ctx, third, s.now.Add(time.Minute), 0)
		s.Require().NoError(err)

		s.Equal(26, p.TotalWeight)
		s.Require().Len(p.Signatures, 3)
		s.Equal(second.LeafHash, p.Signatures[1].LeafHash)
		s.Equal(third.LeafHash, p.Signatures[2].LeafHash)
		s.Equal(2, p.Signatures[2].Seq)
		s.True(p.OpenedAt.Equal(s.now), "opened_at is set once")
	})
}

func (s *PoolStoreSuite) TestDuplicateSignerIsRejected() {
	rec := s.record("pt-lisboa", domain.AssuranceUnverified)
	_, err := s.store.Append(s.ctx, rec, s.now, 0)
	s.Require().NoError(err)

	s.Run("same pool", func() {
		_, err := s.store.Append(s.ctx, rec, s.now, 0)
		s.ErrorIs(err, sentinel.ErrDuplicate)
	})

	s.Run("same target in another region", func() {
		moved := rec
		moved.RegionSlug = "pt-porto"
		_, err := s.store.Append(s.ctx, moved, s.now, 0)
		s.ErrorIs(err, sentinel.ErrDuplicate)
	})

	p, err := s.store.FindByID(s.ctx, domain.PoolIDFor("pt-lisboa", s.target))
	s.Require().NoError(err)
	s.Equal(1, p.TotalWeight)
	s.Len(p.Signatures, 1)
}

func (s *PoolStoreSuite) TestCompareAndSeal() {
	rec := s.record("br-campinas", domain.AssuranceDocumentVerified)
	p, err := s.store.Append(s.ctx, rec, s.now, 0)
	s.Require().NoError(err)
	root := domain.SumSHA256([]byte("root"))
	sealedAt := s.now.Add(time.Hour)

	s.Run("stale leaf count is a conflict", func() {
		_, err := s.store.CompareAndSeal(s.ctx, p.ID, 2, root, sealedAt)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("matching leaf count seals", func() {
		sealed, err := s.store.CompareAndSeal(s.ctx, p.ID, 1, root, sealedAt)
		s.Require().NoError(err)
		s.Equal(models.StatusSealed, sealed.Status)
		s.Equal(root, sealed.MerkleRoot)
		s.Require().NotNil(sealed.SealedAt)
		s.True(sealed.SealedAt.Equal(sealedAt))
	})

	s.Run("second seal is refused", func() {
		_, err := s.store.CompareAndSeal(s.ctx, p.ID, 1, root, sealedAt)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("append after seal is refused and leaves the weight", func() {
		_, err := s.store.Append(s.ctx, s.record("br-campinas", domain.AssuranceSovereignVerified), s.now, 0)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		got, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(5, got.TotalWeight)
		s.Len(got.Signatures, 1)
	})

	s.Run("unknown pool", func() {
		_, err := s.store.CompareAndSeal(s.ctx, domain.PoolID(uuid.New()), 1, root, sealedAt)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PoolStoreSuite) TestList() {
	_, err := s.store.Append(s.ctx, s.record("pt-lisboa", domain.AssuranceUnverified), s.now, 0)
	s.Require().NoError(err)
	porto, err := s.store.Append(s.ctx, s.record("pt-porto", domain.AssuranceUnverified), s.now.Add(time.Minute), 0)
	s.Require().NoError(err)
	_, err = s.store.CompareAndSeal(s.ctx, porto.ID, 1, domain.SumSHA256([]byte("r")), s.now)
	s.Require().NoError(err)

	all, err := s.store.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(porto.ID, all[0].PoolID, "newest first")
	s.Equal(1, all[0].SignatureCount)

	sealed, err := s.store.List(s.ctx, models.ListFilter{Status: models.StatusSealed})
	s.Require().NoError(err)
	s.Require().Len(sealed, 1)
	s.Equal(domain.RegionSlug("pt-porto"), sealed[0].RegionSlug)

	lisboa, err := s.store.List(s.ctx, models.ListFilter{Regions: []domain.RegionSlug{"pt-lisboa"}})
	s.Require().NoError(err)
	s.Len(lisboa, 1)

	limited, err := s.store.List(s.ctx, models.ListFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *PoolStoreSuite) TestAppendRefusedAtLeafCeiling() {
	const ceiling = 2
	region := domain.RegionSlug("ar-rosario")
	for i := 1; i <= ceiling; i++ {
		p, err := s.store.Append(s.ctx, s.record(region, domain.AssuranceUnverified), s.now, ceiling)
		s.Require().NoError(err)
		s.Equal(i, p.LeafCount())
	}

	refused := s.record(region, domain.AssuranceSovereignVerified)
	s.Run("a full pool refuses the next signer", func() {
		_, err := s.store.Append(s.ctx, refused, s.now, ceiling)
		s.ErrorIs(err, sentinel.ErrCapacity)

		p, err := s.store.FindByID(s.ctx, domain.PoolIDFor(region, s.target))
		s.Require().NoError(err)
		s.Equal(ceiling, p.LeafCount())
		s.Equal(2, p.TotalWeight)
		s.Equal(models.StatusOpen, p.Status)
	})

	s.Run("the refused signer is not recorded as having signed", func() {
		moved := refused
		moved.RegionSlug = "ar-cordoba"
		_, err := s.store.Append(s.ctx, moved, s.now, ceiling)
		s.NoError(err)
	})

	s.Run("a full pool still seals", func() {
		_, err := s.store.CompareAndSeal(s.ctx, domain.PoolIDFor(region, s.target), ceiling, domain.SumSHA256([]byte("full")), s.now)
		s.NoError(err)
	})
}

// Each concurrent append must report the pool as it stood right after its
// own signature, so the totals it returns are all distinct and consistent.
func (s *PoolStoreSuite) TestConcurrentAppends() {
	const signers = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		totals = make(map[int]int)
	)
	for i := 0; i < signers; i++ {
		rec := s.record("cl-valparaiso", domain.AssuranceDocumentVerified)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.store.Append(s.ctx, rec, s.now, 0)
			if !s.NoError(err) {
				return
			}
			s.Equal(p.LeafCount()*5, p.TotalWeight)
			last := p.Signatures[p.LeafCount()-1]
			s.Equal(rec.CitizenID, last.CitizenID, "the returned pool ends with this signature")
			mu.Lock()
			totals[p.TotalWeight]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Len(totals, signers)

	p, err := s.store.FindByID(s.ctx, domain.PoolIDFor("cl-valparaiso", s.target))
	s.Require().NoError(err)
	s.Len(p.Signatures, signers)
	s.Equal(signers*5, p.TotalWeight)
	for i, sig := range p.Signatures {
		s.Equal(i, sig.Seq)
	}
}

func (s *PoolStoreSuite) TestFindUnknownPool() {
	_, err := s.store.FindByID(s.ctx, domain.PoolID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
