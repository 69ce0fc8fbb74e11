package kafkatransport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeFetcher struct {
	mu        sync.Mutex
	batches   []kgo.Fetches
	cancel    context.CancelFunc
	commits   int
	commitErr error
}

// PollFetches hands out the queued batches, then cancels the run.
func (f *fakeFetcher) PollFetches(context.Context) kgo.Fetches {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		f.cancel()
		return nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b
}

func (f *fakeFetcher) CommitUncommittedOffsets(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return f.commitErr
}

type handlerFunc func(ctx context.Context, rec *kgo.Record) error

func (fn handlerFunc) Handle(ctx context.Context, rec *kgo.Record) error { return fn(ctx, rec) }

func batch(records ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "verification.submissions",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
	}}}}
}

func records(n int) []*kgo.Record {
	out := make([]*kgo.Record, n)
	for i := range out {
		out[i] = &kgo.Record{Topic: "verification.submissions", Offset: int64(i), Value: []byte(fmt.Sprint(i))}
	}
	return out
}

func newFetcher(batches ...kgo.Fetches) (*fakeFetcher, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeFetcher{batches: batches, cancel: cancel}, ctx
}

func TestConsumer_HandlesEveryRecordAndCommitsPerBatch(t *testing.T) {
	fetcher, ctx := newFetcher(batch(records(3)...), batch(records(2)...))
	var handled atomic.Int32
	c := NewConsumer(fetcher, handlerFunc(func(context.Context, *kgo.Record) error {
		handled.Add(1)
		return nil
	}), 2, nil)

	require.NoError(t, c.Run(ctx))

	assert.Equal(t, int32(5), handled.Load())
	assert.Equal(t, 2, fetcher.commits)
}

func TestConsumer_BoundsConcurrency(t *testing.T) {
	fetcher, ctx := newFetcher(batch(records(8)...))
	var inFlight, peak atomic.Int32
	c := NewConsumer(fetcher, handlerFunc(func(context.Context, *kgo.Record) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}), 3, nil)

	require.NoError(t, c.Run(ctx))

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestConsumer_FailedBatchIsNotCommitted(t *testing.T) {
	fetcher, ctx := newFetcher(batch(records(3)...), batch(records(1)...))
	c := NewConsumer(fetcher, handlerFunc(func(_ context.Context, rec *kgo.Record) error {
		if rec.Offset == 1 {
			return errors.New("publish outcome: broker down")
		}
		return nil
	}), 1, nil)

	err := c.Run(ctx)

	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "verification.submissions/0@1")
	assert.Zero(t, fetcher.commits)
}

func TestConsumer_CommitErrorsDoNotStopConsumption(t *testing.T) {
	fetcher, ctx := newFetcher(batch(records(1)...), batch(records(1)...))
	fetcher.commitErr = errors.New("rebalance in progress")
	c := NewConsumer(fetcher, handlerFunc(func(context.Context, *kgo.Record) error { return nil }), 1, nil)

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, 2, fetcher.commits)
}

func TestConsumer_StopsWhenClientClosed(t *testing.T) {
	closed := kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Partitions: []kgo.FetchPartition{{Partition: -1, Err: kgo.ErrClientClosed}},
	}}}}
	fetcher := &fakeFetcher{batches: []kgo.Fetches{closed}, cancel: func() {}}
	c := NewConsumer(fetcher, handlerFunc(func(context.Context, *kgo.Record) error {
		t.Error("no records expected")
		return nil
	}), 1, nil)

	require.NoError(t, c.Run(context.Background()))
	assert.Zero(t, fetcher.commits)
}

func TestConsumer_ShutdownMidBatchIsNotAnError(t *testing.T) {
	fetcher, ctx := newFetcher(batch(records(1)...))
	c := NewConsumer(fetcher, handlerFunc(func(context.Context, *kgo.Record) error {
		fetcher.cancel()
		return context.Canceled
	}), 1, nil)

	require.NoError(t, c.Run(ctx))
	assert.Zero(t, fetcher.commits)
}
