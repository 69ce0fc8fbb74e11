package moderation

import (
	"context"

	id "docverify/pkg/domain"
)

// Store persists review records.
//
// Append must be atomic per submission ID: when a record for the same SubmissionID
// already exists it returns sentinel.ErrConflict and writes nothing. Errors wrapping
// sentinel.ErrUnavailable are transient and may be retried.
type Store interface {
	Append(ctx context.Context, record Record) error
	FindBySubmission(ctx context.Context, submissionID id.SubmissionID) (*Record, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]Record, error)
}
