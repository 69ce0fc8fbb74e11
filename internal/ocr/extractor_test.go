package ocr_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"docverify/internal/asset"
	"docverify/internal/ocr"
	"docverify/internal/ocr/ocrtest"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/circuit"
)

type ExtractorSuite struct {
	suite.Suite
	engine  *ocrtest.Engine
	metrics *ocr.Metrics
	image   []byte
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) SetupTest() {
	s.engine = ocrtest.NewEngine()
	s.metrics = ocr.NewMetrics(prometheus.NewRegistry())
	s.image = []byte("\x89PNG fake image payload")
}

func (s *ExtractorSuite) extractor(opts ...ocr.Option) *ocr.Extractor {
	opts = append([]ocr.Option{ocr.WithMetrics(s.metrics)}, opts...)
	return ocr.NewExtractor(s.engine, ocr.Config{MaxSessions: 2, BreakerThreshold: 3, BreakerCooldown: time.Hour}, opts...)
}

// =============================================================================
// Success path
// =============================================================================

func (s *ExtractorSuite) TestExtract_NormalizesConfidence() {
	s.engine.On(s.image, ocrtest.Result{Text: "REGISTRO GERAL", Confidence: 87})

	got, err := s.extractor().Extract(context.Background(), asset.FromBytes("front", s.image))
	s.Require().NoError(err)
	s.Equal("REGISTRO GERAL", got.Text)
	s.InDelta(0.87, got.Confidence, 1e-9)
	s.Zero(s.engine.Leaked())
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.SessionsInUse))
}

func (s *ExtractorSuite) TestExtract_ClampsConfidence() {
	cases := map[float64]float64{-5: 0, 0: 0, 100: 1, 140: 1}
	for raw, want := range cases {
		s.engine.On(s.image, ocrtest.Result{Text: "x", Confidence: raw})
		got, err := s.extractor().Extract(context.Background(), asset.FromBytes("front", s.image))
		s.Require().NoError(err)
		s.InDelta(want, got.Confidence, 1e-9, "raw %v", raw)
	}
}

// =============================================================================
// Session release on every exit path
// =============================================================================

func (s *ExtractorSuite) TestExtract_ReleasesSession() {
	tests := []struct {
		name     string
		result   ocrtest.Result
		sentinel error
		code     dErrors.Code
	}{
		{"set image failure", ocrtest.Result{SetErr: errors.New("unsupported format")}, ocr.ErrDecode, dErrors.CodeDocumentRejected},
		{"text failure", ocrtest.Result{TextErr: errors.New("recognition failed")}, ocr.ErrEngineUnavailable, dErrors.CodeUnavailable},
		{"engine panic", ocrtest.Result{Panic: true}, ocr.ErrEngineUnavailable, dErrors.CodeUnavailable},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.engine.On(s.image, tt.result)
			_, err := s.extractor().Extract(context.Background(), asset.FromBytes("front", s.image))
			s.Require().Error(err)
			s.ErrorIs(err, tt.sentinel)
			s.True(dErrors.HasCode(err, tt.code))
			s.Zero(s.engine.Leaked(), "session must be closed")
		})
	}
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.SessionsInUse))
}

func (s *ExtractorSuite) TestExtract_SessionCreationFailure() {
	s.engine.SessionErr = errors.New("tessdata missing")

	_, err := s.extractor().Extract(context.Background(), asset.FromBytes("front", s.image))
	s.ErrorIs(err, ocr.ErrEngineUnavailable)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Failures.WithLabelValues("engine")))
}

func (s *ExtractorSuite) TestExtract_UnreadableImage() {
	_, err := s.extractor().Extract(context.Background(), nil)
	s.ErrorIs(err, ocr.ErrDecode)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Zero(s.engine.Opened.Load(), "engine must not be touched")
}

// =============================================================================
// Circuit breaker
// =============================================================================

func (s *ExtractorSuite) TestExtract_BreakerFailsFast() {
	s.engine.SessionErr = errors.New("engine down")
	breaker := circuit.New("ocr", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	ex := s.extractor(ocr.WithBreaker(breaker))
	img := asset.FromBytes("front", s.image)

	for range 2 {
		_, err := ex.Extract(context.Background(), img)
		s.ErrorIs(err, ocr.ErrEngineUnavailable)
	}
	s.True(breaker.IsOpen())

	s.engine.SessionErr = nil
	_, err := ex.Extract(context.Background(), img)
	s.ErrorIs(err, ocr.ErrEngineUnavailable)
	s.Zero(s.engine.Opened.Load(), "open breaker must not reach the engine")
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.BreakerOpen))
}

// =============================================================================
// Concurrency bound
// =============================================================================

type blockingEngine struct {
	mu      sync.Mutex
	active  int
	peak    int
	release chan struct{}
}

func (e *blockingEngine) NewSession(context.Context) (ocr.Session, error) {
	e.mu.Lock()
	e.active++
	if e.active > e.peak {
		e.peak = e.active
	}
	e.mu.Unlock()
	return &blockingSession{e: e}, nil
}

type blockingSession struct{ e *blockingEngine }

func (b *blockingSession) SetImage([]byte) error { return nil }
func (b *blockingSession) Text() (string, error) {
	<-b.e.release
	return "ok", nil
}
func (b *blockingSession) MeanConfidence() (float64, error) { return 90, nil }
func (b *blockingSession) Close() error {
	b.e.mu.Lock()
	b.e.active--
	b.e.mu.Unlock()
	return nil
}

func (s *ExtractorSuite) TestExtract_BoundsConcurrentSessions() {
	engine := &blockingEngine{release: make(chan struct{})}
	ex := ocr.NewExtractor(engine, ocr.Config{MaxSessions: 2})

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ex.Extract(context.Background(), asset.FromBytes("img", s.image))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(engine.release)
	wg.Wait()

	s.LessOrEqual(engine.peak, 2)
	s.Zero(engine.active)
}

func (s *ExtractorSuite) TestExtract_CancelledWhileWaiting() {
	engine := &blockingEngine{release: make(chan struct{})}
	ex := ocr.NewExtractor(engine, ocr.Config{MaxSessions: 1})

	go func() { _, _ = ex.Extract(context.Background(), asset.FromBytes("img", s.image)) }()
	s.Eventually(func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.active == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ex.Extract(ctx, asset.FromBytes("img", s.image))
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	close(engine.release)
}
