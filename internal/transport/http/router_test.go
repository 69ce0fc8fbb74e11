package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docverify/internal/moderation"
	"docverify/internal/moderation/store/memory"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	registry *prometheus.Registry
	store    *memory.InMemoryStore
	record   moderation.Record
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.registry = prometheus.NewRegistry()
	promauto.With(s.registry).NewCounter(prometheus.CounterOpts{
		Name: "docverify_test_total",
		Help: "test counter",
	}).Inc()

	s.store = memory.NewInMemoryStore()
	s.record = moderation.Record{
		ID:           id.NewRecordID(),
		SubmissionID: id.NewSubmissionID(),
		UserID:       id.NewUserID(),
		FrontRef:     "front.jpg",
		BackRef:      "back.jpg",
		SelfieRef:    "selfie.jpg",
		Status:       moderation.StatusPendingReview,
	}
	s.Require().NoError(s.store.Append(context.Background(), s.record))
}

func (s *RouterSuite) router(opts ...Option) http.Handler {
	return NewRouter(NewHandler(s.registry, opts...))
}

// =============================================================================
// Health
// =============================================================================

func (s *RouterSuite) TestHealth() {
	s.Run("no checks configured", func() {
		rr := testutil.Get(s.router(), "/healthz")

		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"status":"ok"}`, rr.Body.String())
	})

	s.Run("all checks pass", func() {
		rr := testutil.Get(s.router(
			WithCheck("redis", func(context.Context) error { return nil }),
			WithCheck("postgres", func(context.Context) error { return nil }),
		), "/healthz")

		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"status":"ok","checks":{"postgres":"ok","redis":"ok"}}`, rr.Body.String())
	})

	s.Run("one failing check degrades the service", func() {
		rr := testutil.Get(s.router(
			WithCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
			WithCheck("postgres", func(context.Context) error { return nil }),
		), "/healthz")

		s.Equal(http.StatusServiceUnavailable, rr.Code)
		body := testutil.UnmarshalResponse[healthResponse](s.T(), rr)
		s.Equal("degraded", body.Status)
		s.Equal("unavailable", body.Checks["redis"])
		s.Equal("ok", body.Checks["postgres"])
		s.NotContains(rr.Body.String(), "connection refused")
	})

	s.Run("checks run under a deadline", func() {
		var hadDeadline bool
		testutil.Get(s.router(WithCheck("kafka", func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		})), "/healthz")

		s.True(hadDeadline)
	})
}

// =============================================================================
// Metrics
// =============================================================================

func (s *RouterSuite) TestMetrics() {
	rr := testutil.Get(s.router(), "/metrics")

	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "docverify_test_total 1")
}

func (s *RouterSuite) TestMetrics_NotMountedWithoutGatherer() {
	rr := testutil.Get(NewRouter(NewHandler(nil)), "/metrics")
	s.Equal(http.StatusNotFound, rr.Code)
}

// =============================================================================
// Moderation queue
// =============================================================================

func (s *RouterSuite) TestGetRecord() {
	s.Run("found", func() {
		rr := testutil.Get(s.router(WithRecords(s.store)), "/moderation/submissions/"+s.record.SubmissionID.String())

		s.Require().Equal(http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[moderation.Record](s.T(), rr)
		s.Equal(s.record.ID, got.ID)
		s.Equal(moderation.StatusPendingReview, got.Status)
	})

	s.Run("unknown submission", func() {
		rr := testutil.Get(s.router(WithRecords(s.store)), "/moderation/submissions/"+id.NewSubmissionID().String())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed submission ID", func() {
		rr := testutil.Get(s.router(WithRecords(s.store)), "/moderation/submissions/not-a-uuid")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("store unavailable", func() {
		rr := testutil.Get(s.router(WithRecords(failingReader{err: sentinel.ErrUnavailable})), "/moderation/submissions/"+s.record.SubmissionID.String())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})

	s.Run("unexpected store error hides details", func() {
		rr := testutil.Get(s.router(WithRecords(failingReader{err: errors.New("pq: relation missing")})), "/moderation/submissions/"+s.record.SubmissionID.String())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
		s.False(strings.Contains(rr.Body.String(), "relation"))
	})
}

func (s *RouterSuite) TestListRecords() {
	s.Run("lists the user's records", func() {
		rr := testutil.Get(s.router(WithRecords(s.store)), "/moderation/users/"+s.record.UserID.String())

		s.Require().Equal(http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[listResponse](s.T(), rr)
		s.Require().Len(got.Records, 1)
		s.Equal(s.record.SubmissionID, got.Records[0].SubmissionID)
	})

	s.Run("user without records gets an empty list", func() {
		rr := testutil.Get(s.router(WithRecords(s.store)), "/moderation/users/"+id.NewSubmissionID().String())

		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"records":[]}`, rr.Body.String())
	})
}

func TestModerationRoutes_NotMountedWithoutReader(t *testing.T) {
	rr := testutil.Get(NewRouter(NewHandler(prometheus.NewRegistry())), "/moderation/users/"+id.NewSubmissionID().String())
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWithCheck_IgnoresNil(t *testing.T) {
	h := NewHandler(nil, WithCheck("redis", nil))
	require.Empty(t, h.checks)
}

type failingReader struct{ err error }

func (f failingReader) FindBySubmission(context.Context, id.SubmissionID) (*moderation.Record, error) {
	return nil, f.err
}

func (f failingReader) ListByUser(context.Context, id.UserID) ([]moderation.Record, error) {
	return nil, f.err
}
