package kafkatransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the subset of a group-consuming *kgo.Client the Consumer needs.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

// RecordHandler processes one record. *SubmissionHandler satisfies it.
type RecordHandler interface {
	Handle(ctx context.Context, rec *kgo.Record) error
}

// Consumer polls batches, handles their records with bounded concurrency and commits
// once the whole batch has been handled.
type Consumer struct {
	client      Fetcher
	handler     RecordHandler
	concurrency int
	logger      *slog.Logger
}

func NewConsumer(client Fetcher, handler RecordHandler, concurrency int, logger *slog.Logger) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{
		client:      client,
		handler:     handler,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run consumes until ctx is cancelled or the client is closed, both of which return nil.
// A batch whose outcomes could not all be published is not committed and stops the
// consumer with an error, so the records are redelivered after restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.WarnContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		if err := c.handleBatch(ctx, records); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.ErrorContext(ctx, "failed to commit offsets", "records", len(records), "error", err)
		}
	}
}

func (c *Consumer) handleBatch(ctx context.Context, records []*kgo.Record) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, rec := range records {
		g.Go(func() error {
			if err := c.handler.Handle(gctx, rec); err != nil {
				return fmt.Errorf("handle %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
			}
			return nil
		})
	}
	return g.Wait()
}
