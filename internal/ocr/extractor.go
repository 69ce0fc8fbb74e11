package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/semaphore"

	"docverify/internal/asset"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/circuit"
)

var (
	// ErrEngineUnavailable: no session could be obtained or the engine failed mid-run.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	// ErrDecode: the image bytes could not be read or were refused by the engine.
	ErrDecode = errors.New("image could not be decoded")
)

// Config bounds engine usage.
type Config struct {
	MaxSessions      int64
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// ConfidenceScale is the engine's maximum confidence value. Default 100.
	ConfidenceScale float64
}

func (c Config) withDefaults() Config {
	if c.MaxSessions < 1 {
		c.MaxSessions = 1
	}
	if c.BreakerThreshold < 1 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.ConfidenceScale <= 0 {
		c.ConfidenceScale = 100
	}
	return c
}

// Extractor runs the engine against images. Safe for concurrent use.
type Extractor struct {
	engine  Engine
	cfg     Config
	sem     *semaphore.Weighted
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Extractor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithBreaker replaces the breaker built from Config.
func WithBreaker(b *circuit.Breaker) Option {
	return func(e *Extractor) {
		e.breaker = b
	}
}

func NewExtractor(engine Engine, cfg Config, opts ...Option) *Extractor {
	cfg = cfg.withDefaults()
	e := &Extractor{
		engine: engine,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxSessions),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.breaker == nil {
		e.breaker = circuit.New("ocr",
			circuit.WithFailureThreshold(cfg.BreakerThreshold),
			circuit.WithCooldown(cfg.BreakerCooldown),
		)
	}
	return e
}

// Extract recognizes the text in img. Errors wrap ErrEngineUnavailable or ErrDecode and
// carry a domain error code.
func (e *Extractor) Extract(ctx context.Context, img *asset.Image) (result Extraction, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observeDuration(time.Since(start))
		if err != nil {
			e.metrics.incFailure(failureKind(err))
		}
	}()

	data, err := img.Bytes(ctx)
	if err != nil {
		return Extraction{}, dErrors.Wrap(fmt.Errorf("%w: %w", ErrDecode, err), dErrors.CodeOf(err), dErrors.MessageOf(err, "could not read image"))
	}

	if !e.breaker.Allow() {
		return Extraction{}, engineUnavailable(errors.New("circuit open"))
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for ocr engine")
	}
	defer e.sem.Release(1)
	e.metrics.sessionAcquired()
	defer e.metrics.sessionReleased()

	sess, err := e.engine.NewSession(ctx)
	if err != nil {
		e.recordFailure(ctx, err)
		return Extraction{}, engineUnavailable(err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.logger.WarnContext(ctx, "failed to close ocr session", "error", cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("engine panic: %v", r)
			e.recordFailure(ctx, perr)
			result, err = Extraction{}, engineUnavailable(perr)
		}
	}()

	if err := sess.SetImage(data); err != nil {
		return Extraction{}, dErrors.Wrap(fmt.Errorf("%w: %w", ErrDecode, err), dErrors.CodeDocumentRejected, "could not read image")
	}

	text, err := sess.Text()
	if err != nil {
		e.recordFailure(ctx, err)
		return Extraction{}, engineUnavailable(err)
	}

	raw, err := sess.MeanConfidence()
	if err != nil {
		e.logger.WarnContext(ctx, "ocr confidence unavailable, using zero", "error", err)
		raw = 0
	}

	if _, change := e.breaker.RecordSuccess(); change.Closed {
		e.logger.InfoContext(ctx, "ocr circuit closed")
		e.metrics.setBreakerOpen(false)
	}
	return Extraction{Text: text, Confidence: e.normalize(raw)}, nil
}

func (e *Extractor) normalize(raw float64) float64 {
	c := raw / e.cfg.ConfidenceScale
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func (e *Extractor) recordFailure(ctx context.Context, cause error) {
	if _, change := e.breaker.RecordFailure(); change.Opened {
		e.logger.ErrorContext(ctx, "ocr circuit opened", "error", cause)
		e.metrics.setBreakerOpen(true)
	}
}

func engineUnavailable(cause error) error {
	return dErrors.Wrap(fmt.Errorf("%w: %w", ErrEngineUnavailable, cause), dErrors.CodeUnavailable, "text recognition unavailable")
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrEngineUnavailable):
		return "engine"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "timeout"
	}
}
