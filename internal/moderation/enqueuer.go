package moderation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	dErrors "docverify/pkg/domain-errors"
	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// AuditPublisher is the subset of the audit publisher used here.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Enqueuer appends submissions to the review queue. It never panics and never returns an
// error: callers get a bool.
type Enqueuer struct {
	store    Store
	guard    Guard
	notifier Notifier
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *Metrics

	maxRetries  uint64
	backoffBase time.Duration
}

type Option func(*Enqueuer)

func WithGuard(g Guard) Option {
	return func(e *Enqueuer) {
		e.guard = g
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Enqueuer) {
		e.notifier = n
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Enqueuer) {
		e.auditor = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Enqueuer) {
		e.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Enqueuer) {
		e.metrics = m
	}
}

// WithRetry sets how many times a transient store error is retried, with Fibonacci
// backoff starting at base.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(e *Enqueuer) {
		e.maxRetries = maxRetries
		if base > 0 {
			e.backoffBase = base
		}
	}
}

func NewEnqueuer(store Store, opts ...Option) *Enqueuer {
	e := &Enqueuer{
		store:       store,
		maxRetries:  3,
		backoffBase: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Enqueue creates the pending_review record for sub. It returns true when the record
// exists afterwards, including when an earlier attempt already created it.
func (e *Enqueuer) Enqueue(ctx context.Context, sub Submission) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "enqueue panicked",
				"submission_id", sub.ID.String(),
				"panic", r,
			)
			e.metrics.IncEnqueued(resultFailed)
			ok = false
		}
	}()

	if sub.ID.IsNil() || sub.UserID.IsNil() {
		e.logger.ErrorContext(ctx, "enqueue rejected: missing identifiers",
			"submission_id", sub.ID.String(),
			"user_id", sub.UserID.String(),
		)
		e.metrics.IncEnqueued(resultFailed)
		return false
	}

	if e.guard != nil {
		acquired, err := e.guard.Acquire(ctx, sub.ID)
		switch {
		case err != nil:
			e.metrics.IncGuardError()
			e.logger.WarnContext(ctx, "enqueue guard unavailable, continuing without it",
				"submission_id", sub.ID.String(),
				"error", err,
			)
		case !acquired:
			return e.resolveInFlight(ctx, sub)
		default:
			defer func() {
				if !ok {
					e.releaseGuard(ctx, sub)
				}
			}()
		}
	}

	record := newRecord(sub, requestcontext.Now(ctx))
	err := e.append(ctx, record)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		e.metrics.IncEnqueued(resultDuplicate)
		e.logger.InfoContext(ctx, "submission already queued for review",
			"submission_id", sub.ID.String(),
			"user_id", sub.UserID.String(),
		)
		return true
	case err != nil:
		e.metrics.IncEnqueued(resultFailed)
		e.logger.ErrorContext(ctx, "failed to queue submission for review",
			"submission_id", sub.ID.String(),
			"user_id", sub.UserID.String(),
			"error", err,
		)
		return false
	}

	e.metrics.IncEnqueued(resultCreated)
	e.logger.InfoContext(ctx, "submission queued for review",
		"submission_id", sub.ID.String(),
		"user_id", sub.UserID.String(),
		"record_id", record.ID.String(),
	)
	e.notify(ctx, record)
	e.emitAudit(ctx, record)
	return true
}

// append writes the record, retrying transient failures.
func (e *Enqueuer) append(ctx context.Context, record Record) error {
	backoff := retry.WithMaxRetries(e.maxRetries, retry.NewFibonacci(e.backoffBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			e.metrics.IncStoreRetry()
		}
		err := e.store.Append(ctx, record)
		if err != nil && isTransient(err) {
			e.logger.WarnContext(ctx, "moderation store write failed, will retry",
				"submission_id", record.SubmissionID.String(),
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, sentinel.ErrUnavailable) || dErrors.CodeOf(err).Retryable()
}

// resolveInFlight handles a submission whose guard is held by another attempt: success
// only if that attempt already stored the record.
func (e *Enqueuer) resolveInFlight(ctx context.Context, sub Submission) bool {
	record, err := e.store.FindBySubmission(ctx, sub.ID)
	if err == nil && record != nil {
		e.metrics.IncEnqueued(resultDuplicate)
		return true
	}
	e.metrics.IncEnqueued(resultInFlight)
	e.logger.WarnContext(ctx, "submission enqueue already in progress",
		"submission_id", sub.ID.String(),
		"user_id", sub.UserID.String(),
	)
	return false
}

func (e *Enqueuer) releaseGuard(ctx context.Context, sub Submission) {
	// the caller's context may be done; release on a short detached one
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := e.guard.Release(releaseCtx, sub.ID); err != nil {
		e.metrics.IncGuardError()
		e.logger.WarnContext(ctx, "failed to release enqueue guard",
			"submission_id", sub.ID.String(),
			"error", err,
		)
	}
}

func (e *Enqueuer) notify(ctx context.Context, record Record) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.PendingReview(ctx, record); err != nil {
		e.metrics.IncNotifyFailure()
		e.logger.WarnContext(ctx, "pending review notification failed",
			"submission_id", record.SubmissionID.String(),
			"error", err,
		)
	}
}

func (e *Enqueuer) emitAudit(ctx context.Context, record Record) {
	if e.auditor == nil {
		return
	}
	err := e.auditor.Emit(ctx, audit.Event{
		UserID:        record.UserID,
		SubmissionID:  record.SubmissionID,
		Action:        string(audit.EventSubmissionEnqueued),
		Decision:      string(record.Status),
		CorrelationID: requestcontext.CorrelationID(ctx),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "audit emit failed",
			"submission_id", record.SubmissionID.String(),
			"error", err,
		)
	}
}
