package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"civictrust/internal/governance/ports"
	"civictrust/pkg/domain"
	"civictrust/pkg/requestcontext"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func announcement() ports.SealAnnouncement {
	return ports.SealAnnouncement{
		PoolID:            domain.PoolID(uuid.New()),
		RegionSlug:        "pt-lisboa",
		TargetComplaintID: domain.ComplaintID(uuid.New()),
		MerkleRoot:        domain.SumSHA256([]byte("root")),
		LeafCount:         3,
		TotalWeight:       26,
		SealedAt:          time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestAnnouncer_AnnounceSeal(t *testing.T) {
	ctx := requestcontext.WithRequestID(context.Background(), "req-seal")

	t.Run("keys by pool and carries the correlation id", func(t *testing.T) {
		p := &fakeProducer{}
		ann := announcement()
		require.NoError(t, NewAnnouncer(p, "").AnnounceSeal(ctx, ann))

		require.Len(t, p.records, 1)
		rec := p.records[0]
		assert.Equal(t, DefaultTopic, rec.Topic)
		assert.Equal(t, ann.PoolID.String(), string(rec.Key))
		require.Len(t, rec.Headers, 1)
		assert.Equal(t, "req-seal", string(rec.Headers[0].Value))

		var got ports.SealAnnouncement
		require.NoError(t, json.Unmarshal(rec.Value, &got))
		assert.Equal(t, ann.MerkleRoot, got.MerkleRoot)
		assert.Equal(t, ann.PoolID, got.PoolID)
		assert.True(t, ann.SealedAt.Equal(got.SealedAt))
	})

	t.Run("broker error surfaces", func(t *testing.T) {
		p := &fakeProducer{err: errors.New("NOT_LEADER_FOR_PARTITION")}
		err := NewAnnouncer(p, "seals").AnnounceSeal(ctx, announcement())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NOT_LEADER_FOR_PARTITION")
	})
}
