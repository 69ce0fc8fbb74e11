// Package moderation appends verified submissions to the human review queue.
package moderation

import (
	"time"

	id "docverify/pkg/domain"
)

type Status string

const StatusPendingReview Status = "pending_review"

// Submission is what gets queued: who submitted it and the three image references.
type Submission struct {
	ID        id.SubmissionID
	UserID    id.UserID
	FrontRef  string
	BackRef   string
	SelfieRef string
}

// Record is one entry of the review queue. Records are append-only and keyed on
// SubmissionID: one submission never produces two records.
type Record struct {
	ID           id.RecordID     `json:"id"`
	SubmissionID id.SubmissionID `json:"submission_id"`
	UserID       id.UserID       `json:"user_id"`
	FrontRef     string          `json:"front_ref"`
	BackRef      string          `json:"back_ref"`
	SelfieRef    string          `json:"selfie_ref"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newRecord(sub Submission, now time.Time) Record {
	return Record{
		ID:           id.NewRecordID(),
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		FrontRef:     sub.FrontRef,
		BackRef:      sub.BackRef,
		SelfieRef:    sub.SelfieRef,
		Status:       StatusPendingReview,
		CreatedAt:    now,
	}
}
