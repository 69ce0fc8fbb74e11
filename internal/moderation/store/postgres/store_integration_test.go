//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/internal/moderation"
	"docverify/internal/moderation/store/postgres"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(context.Background(), "TRUNCATE moderation_records")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) record(user id.UserID) moderation.Record {
	return moderation.Record{
		ID:           id.NewRecordID(),
		SubmissionID: id.NewSubmissionID(),
		UserID:       user,
		FrontRef:     "s3://docs/front.jpg",
		BackRef:      "s3://docs/back.jpg",
		SelfieRef:    "s3://docs/selfie.jpg",
		Status:       moderation.StatusPendingReview,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAppendAndFind() {
	ctx := context.Background()
	r := s.record(id.NewUserID())

	s.Require().NoError(s.store.Append(ctx, r))

	got, err := s.store.FindBySubmission(ctx, r.SubmissionID)
	s.Require().NoError(err)
	s.Equal(r.ID, got.ID)
	s.Equal(r.SelfieRef, got.SelfieRef)
	s.True(r.CreatedAt.Equal(got.CreatedAt))
}

func (s *PostgresStoreSuite) TestOnConflictDoNothing() {
	ctx := context.Background()
	r := s.record(id.NewUserID())
	retry := r
	retry.ID = id.NewRecordID()

	s.Require().NoError(s.store.Append(ctx, r))
	s.ErrorIs(s.store.Append(ctx, retry), sentinel.ErrConflict)

	list, err := s.store.ListByUser(ctx, r.UserID)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal(r.ID, list[0].ID)
}

func (s *PostgresStoreSuite) TestConcurrentAppendsCreateOneRecord() {
	ctx := context.Background()
	r := s.record(id.NewUserID())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := r
			attempt.ID = id.NewRecordID()
			if s.store.Append(ctx, attempt) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindBySubmission(context.Background(), id.NewSubmissionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestEnqueuerEndToEnd() {
	ctx := context.Background()
	e := moderation.NewEnqueuer(s.store)
	sub := moderation.Submission{
		ID:        id.NewSubmissionID(),
		UserID:    id.NewUserID(),
		FrontRef:  "front.jpg",
		BackRef:   "back.jpg",
		SelfieRef: "selfie.jpg",
	}

	s.True(e.Enqueue(ctx, sub))
	s.True(e.Enqueue(ctx, sub))

	list, err := s.store.ListByUser(ctx, sub.UserID)
	s.Require().NoError(err)
	s.Len(list, 1)
}
