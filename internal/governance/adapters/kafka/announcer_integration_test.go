//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	announcer "civictrust/internal/governance/adapters/kafka"
	"civictrust/internal/governance/ports"
	"civictrust/internal/platform/kafka"
	"civictrust/pkg/domain"
	"civictrust/pkg/testutil/containers"
)

func TestAnnouncerAgainstRedpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	topic := "seals-" + uuid.NewString()

	producer, err := kafka.NewClient(kafka.Config{Brokers: broker.Brokers, ClientID: "civictrust-test"})
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1, 1), "second create is a no-op")

	ann := ports.SealAnnouncement{
		PoolID:            domain.PoolID(uuid.New()),
		RegionSlug:        "cl-valparaiso",
		TargetComplaintID: domain.ComplaintID(uuid.New()),
		MerkleRoot:        domain.SumSHA256([]byte("root")),
		LeafCount:         1,
		TotalWeight:       20,
		SealedAt:          time.Now().UTC(),
	}
	require.NoError(t, announcer.NewAnnouncer(producer, topic).AnnounceSeal(ctx, ann))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, ann.PoolID.String(), string(records[0].Key))

	var got ports.SealAnnouncement
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, ann.MerkleRoot, got.MerkleRoot)
}
