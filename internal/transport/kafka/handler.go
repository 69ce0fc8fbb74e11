// Package kafkatransport feeds submission records from Kafka through the verification
// pipeline and publishes one outcome record per submission.
package kafkatransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/verification"
	id "docverify/pkg/domain"
	"docverify/pkg/requestcontext"
)

const headerCorrelationID = "correlation_id"

// Verifier runs one submission. *verification.Service satisfies it.
type Verifier interface {
	Verify(ctx context.Context, sub verification.Submission) verification.Outcome
}

// Producer is the subset of *kgo.Client used to publish outcomes.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// OutcomeMessage is the JSON value published to the outcomes topic.
type OutcomeMessage struct {
	SubmissionID id.SubmissionID    `json:"submission_id"`
	UserID       id.UserID          `json:"user_id"`
	Success      bool               `json:"success"`
	Message      string             `json:"message"`
	Stage        verification.Stage `json:"stage"`
	DecidedAt    time.Time          `json:"decided_at"`
}

// SubmissionHandler decodes one record, verifies it and publishes the outcome.
type SubmissionHandler struct {
	verifier      Verifier
	producer      Producer
	outcomesTopic string
	logger        *slog.Logger
	metrics       *Metrics
	maxRetries    uint64
	backoffBase   time.Duration
	now           func() time.Time
}

type Option func(*SubmissionHandler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *SubmissionHandler) {
		h.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *SubmissionHandler) {
		h.metrics = m
	}
}

// WithPublishRetry sets how often a failed outcome publish is retried.
func WithPublishRetry(maxRetries uint64, base time.Duration) Option {
	return func(h *SubmissionHandler) {
		h.maxRetries = maxRetries
		if base > 0 {
			h.backoffBase = base
		}
	}
}

func NewSubmissionHandler(verifier Verifier, producer Producer, outcomesTopic string, opts ...Option) *SubmissionHandler {
	h := &SubmissionHandler{
		verifier:      verifier,
		producer:      producer,
		outcomesTopic: outcomesTopic,
		maxRetries:    3,
		backoffBase:   200 * time.Millisecond,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Handle processes one record. A nil return means the record may be committed.
// Malformed records are logged and skipped. Returned errors mean the outcome was not
// published and the record must be redelivered.
func (h *SubmissionHandler) Handle(ctx context.Context, rec *kgo.Record) error {
	var sub verification.Submission
	if err := json.Unmarshal(rec.Value, &sub); err != nil {
		h.logger.WarnContext(ctx, "skipping malformed submission record",
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
			"key", string(rec.Key),
			"error", err,
		)
		h.metrics.IncRecord(resultMalformed)
		return nil
	}

	if cid := header(rec, headerCorrelationID); cid != "" {
		ctx = requestcontext.WithCorrelationID(ctx, cid)
	}
	if !rec.Timestamp.IsZero() {
		ctx = requestcontext.WithTime(ctx, rec.Timestamp)
	}

	outcome := h.verifier.Verify(ctx, sub)
	if err := ctx.Err(); err != nil {
		// shutting down: the outcome reflects the cancellation, not the submission
		return err
	}

	if err := h.publish(ctx, sub, outcome); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish verification outcome",
			"submission_id", sub.ID.String(),
			"error", err,
		)
		h.metrics.IncRecord(resultFailed)
		return err
	}
	h.metrics.IncRecord(resultProcessed)
	return nil
}

func (h *SubmissionHandler) publish(ctx context.Context, sub verification.Submission, outcome verification.Outcome) error {
	payload, err := json.Marshal(OutcomeMessage{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		Success:      outcome.Success,
		Message:      outcome.Message,
		Stage:        outcome.Stage,
		DecidedAt:    h.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	rec := &kgo.Record{
		Topic: h.outcomesTopic,
		Key:   []byte(sub.ID.String()),
		Value: payload,
	}
	if cid := requestcontext.CorrelationID(ctx); cid != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: headerCorrelationID, Value: []byte(cid)})
	}

	backoff := retry.WithMaxRetries(h.maxRetries, retry.NewFibonacci(h.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := h.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(fmt.Errorf("publish outcome: %w", err))
		}
		return nil
	})
}

func header(rec *kgo.Record, key string) string {
	for _, hdr := range rec.Headers {
		if hdr.Key == key {
			return string(hdr.Value)
		}
	}
	return ""
}
