package moderation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Notifier announces a record that is ready for review.
type Notifier interface {
	PendingReview(ctx context.Context, record Record) error
}

// Producer is the subset of *kgo.Client used to publish.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaNotifier publishes records as JSON keyed by submission ID, so every message about
// one submission lands on the same partition.
type KafkaNotifier struct {
	producer Producer
	topic    string
}

func NewKafkaNotifier(producer Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) PendingReview(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal pending review: %w", err)
	}
	rec := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(record.SubmissionID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "status", Value: []byte(record.Status)},
		},
	}
	if err := n.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish pending review: %w", err)
	}
	return nil
}
