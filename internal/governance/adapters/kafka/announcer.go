// Package kafka publishes sealed pool proofs to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"civictrust/internal/governance/ports"
	"civictrust/pkg/requestcontext"
)

// DefaultTopic receives one record per sealed pool.
const DefaultTopic = "civictrust.pools.sealed"

const correlationHeader = "correlation_id"

// Producer is the slice of *kgo.Client the announcer uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Announcer implements ports.SealAnnouncer. Records are keyed by pool id so
// every announcement for a pool lands on the same partition.
type Announcer struct {
	producer Producer
	topic    string
}

func NewAnnouncer(producer Producer, topic string) *Announcer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Announcer{producer: producer, topic: topic}
}

func (a *Announcer) AnnounceSeal(ctx context.Context, ann ports.SealAnnouncement) error {
	value, err := json.Marshal(ann)
	if err != nil {
		return fmt.Errorf("encode seal announcement: %w", err)
	}
	rec := &kgo.Record{
		Topic: a.topic,
		Key:   []byte(ann.PoolID.String()),
		Value: value,
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: correlationHeader, Value: []byte(id)})
	}
	if err := a.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish seal announcement for pool %s: %w", ann.PoolID, err)
	}
	return nil
}
