// Package requestcontext provides transport-independent context accessors for
// submission-scoped values.
//
// Entry points (the Kafka consumer, the CLI) set values; services and loggers read them:
//
//	ctx = requestcontext.WithSubmission(ctx, userID, submissionID)
//	ctx = requestcontext.WithCorrelationID(ctx, recordKey)
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests pin time with WithTime.
package requestcontext

import (
	"context"
	"time"

	id "docverify/pkg/domain"
)

type (
	userIDKey        struct{}
	submissionIDKey  struct{}
	correlationIDKey struct{}
	requestTimeKey   struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUserID        = userIDKey{}
	ContextKeySubmissionID  = submissionIDKey{}
	ContextKeyCorrelationID = correlationIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Submission identity
// -----------------------------------------------------------------------------

// UserID returns the submitting user's ID, or the zero value if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// SubmissionID returns the submission being processed, or the zero value if not set.
func SubmissionID(ctx context.Context) id.SubmissionID {
	if subID, ok := ctx.Value(ContextKeySubmissionID).(id.SubmissionID); ok {
		return subID
	}
	return id.SubmissionID{}
}

// WithSubmission injects both the user and submission IDs.
func WithSubmission(ctx context.Context, userID id.UserID, submissionID id.SubmissionID) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	return context.WithValue(ctx, ContextKeySubmissionID, submissionID)
}

// -----------------------------------------------------------------------------
// Correlation
// -----------------------------------------------------------------------------

// CorrelationID returns the inbound message or run identifier.
func CorrelationID(ctx context.Context) string {
	if cid, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return cid
	}
	return ""
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now returns the submission-scoped time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the time seen by Now. Used by the consumer (record timestamp) and tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
