package moderation_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var results kgo.ProduceResults
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaNotifier_PublishesRecord(t *testing.T) {
	producer := &fakeProducer{}
	n := moderation.NewKafkaNotifier(producer, "submission.pending_review")
	record := moderation.Record{
		ID:           id.NewRecordID(),
		SubmissionID: id.NewSubmissionID(),
		UserID:       id.NewUserID(),
		FrontRef:     "front.jpg",
		Status:       moderation.StatusPendingReview,
	}

	require.NoError(t, n.PendingReview(context.Background(), record))

	require.Len(t, producer.records, 1)
	msg := producer.records[0]
	assert.Equal(t, "submission.pending_review", msg.Topic)
	assert.Equal(t, record.SubmissionID.String(), string(msg.Key))

	var decoded moderation.Record
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, record.SubmissionID, decoded.SubmissionID)
	assert.Equal(t, moderation.StatusPendingReview, decoded.Status)
}

func TestKafkaNotifier_PropagatesProduceError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("not leader")}

	err := moderation.NewKafkaNotifier(producer, "t").PendingReview(context.Background(), moderation.Record{})

	assert.ErrorContains(t, err, "not leader")
}
