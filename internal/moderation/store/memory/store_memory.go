package memory

import (
	"context"
	"sync"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// InMemoryStore keeps records in insertion order, keyed on submission ID.
type InMemoryStore struct {
	mu           sync.RWMutex
	records      []moderation.Record
	bySubmission map[id.SubmissionID]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubmission: make(map[id.SubmissionID]int)}
}

func (s *InMemoryStore) Append(_ context.Context, record moderation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySubmission[record.SubmissionID]; ok {
		return sentinel.ErrConflict
	}
	s.bySubmission[record.SubmissionID] = len(s.records)
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) FindBySubmission(_ context.Context, submissionID id.SubmissionID) (*moderation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.bySubmission[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := s.records[i]
	return &record, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]moderation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []moderation.Record
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
