package audit

import (
	"context"
	"time"

	id "docverify/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores can apply
// different retention.
type EventCategory string

const (
	// CategoryCompliance covers decisions about a person's identity evidence. Long retention.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine pipeline activity. Can be sampled or aggregated.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the pipeline at decision points. Keep it transport-agnostic so
// stores and sinks can fan out. It never carries extracted document text.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	UserID        id.UserID
	SubmissionID  id.SubmissionID
	Action        string
	Stage         string
	Decision      string
	Reason        string
	CorrelationID string
}

type AuditEvent string

const (
	EventVerificationDecided AuditEvent = "verification_decided"
	EventSubmissionEnqueued  AuditEvent = "submission_enqueued"
	EventStageRejected       AuditEvent = "stage_rejected"
)

// Decision values recorded on verification_decided.
const (
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
	DecisionFailed   = "failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationDecided: CategoryCompliance,
	EventSubmissionEnqueued:  CategoryCompliance,
	EventStageRejected:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
