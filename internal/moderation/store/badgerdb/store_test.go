package badgerdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func record(user id.UserID, at time.Time) moderation.Record {
	return moderation.Record{
		ID:           id.NewRecordID(),
		SubmissionID: id.NewSubmissionID(),
		UserID:       user,
		FrontRef:     "front.jpg",
		BackRef:      "back.jpg",
		SelfieRef:    "selfie.jpg",
		Status:       moderation.StatusPendingReview,
		CreatedAt:    at.UTC(),
	}
}

func TestStore_AppendAndFind(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := record(id.NewUserID(), time.Now())

	require.NoError(t, s.Append(ctx, r))

	got, err := s.FindBySubmission(ctx, r.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.UserID, got.UserID)
	assert.Equal(t, moderation.StatusPendingReview, got.Status)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_AppendIsKeyedOnSubmission(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	first := record(id.NewUserID(), time.Now())
	second := first
	second.ID = id.NewRecordID()

	require.NoError(t, s.Append(ctx, first))
	assert.ErrorIs(t, s.Append(ctx, second), sentinel.ErrConflict)

	got, err := s.FindBySubmission(ctx, first.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "the first record wins")

	list, err := s.ListByUser(ctx, first.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_ConcurrentAppendsCreateOneRecord(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := record(id.NewUserID(), time.Now())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := r
			attempt.ID = id.NewRecordID()
			if s.Append(ctx, attempt) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestStore_ListByUserOrdersByCreation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	user := id.NewUserID()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	later := record(user, base.Add(time.Hour))
	earlier := record(user, base)
	other := record(id.NewUserID(), base)
	for _, r := range []moderation.Record{later, earlier, other} {
		require.NoError(t, s.Append(ctx, r))
	}

	got, err := s.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, earlier.SubmissionID, got[0].SubmissionID)
	assert.Equal(t, later.SubmissionID, got[1].SubmissionID)
}

func TestStore_FindMissing(t *testing.T) {
	_, err := newStore(t).FindBySubmission(context.Background(), id.NewSubmissionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
