// Package verification runs the staged document verification pipeline: front analysis,
// back analysis, face comparison, then the moderation queue. It stops at the first
// failing stage and returns one user-safe Outcome.
package verification

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"docverify/internal/asset"
	"docverify/internal/document"
	dErrors "docverify/pkg/domain-errors"
	audit "docverify/pkg/platform/audit"
	"docverify/pkg/requestcontext"
)

const component = "DocumentAnalysis"

// Service is safe for concurrent use; each Verify call is independent.
type Service struct {
	resolver   ImageResolver
	analyzer   DocumentAnalyzer
	comparator FaceComparator
	enqueuer   Enqueuer
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *Metrics
	timeout    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithTimeout bounds a whole submission. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

func NewService(resolver ImageResolver, analyzer DocumentAnalyzer, comparator FaceComparator, enqueuer Enqueuer, opts ...Option) *Service {
	s := &Service{
		resolver:   resolver,
		analyzer:   analyzer,
		comparator: comparator,
		enqueuer:   enqueuer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// run carries one submission through the stages.
type run struct {
	sub    Submission
	logger *slog.Logger

	front  *asset.Image
	back   *asset.Image
	selfie *asset.Image
}

// stageResult is what a stage reports. failure is empty when passed.
type stageResult struct {
	passed  bool
	failure dErrors.Code
	message string
	attrs   []any
}

type stageFunc func(ctx context.Context, r *run) stageResult

// Verify runs the pipeline for sub. It never returns an error and never panics.
func (s *Service) Verify(ctx context.Context, sub Submission) Outcome {
	started := time.Now()
	ctx = requestcontext.WithSubmission(ctx, sub.UserID, sub.ID)
	logger := s.logger.With(
		"component", component,
		"user_id", sub.UserID.String(),
		"submission_id", sub.ID.String(),
	)

	if err := sub.Validate(); err != nil {
		logger.WarnContext(ctx, "submission rejected", "stage", string(StageValidating), "error", err)
		outcome := Outcome{Message: dErrors.MessageOf(err, "invalid submission"), Stage: StageValidating}
		s.finish(ctx, logger, sub, outcome, resultInvalid, started)
		return outcome
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	r := &run{sub: sub, logger: logger}
	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageAnalyzingPrimary, s.analyzePrimary},
		{StageAnalyzingSecondary, s.analyzeSecondary},
		{StageComparingFaces, s.compareFaces},
		{StageEnqueuing, s.enqueue},
	}
	for _, st := range stages {
		// cancellation is only observed between stages
		if ctx.Err() != nil {
			return s.timedOut(ctx, logger, sub, st.stage, started)
		}
		res := s.runStage(ctx, logger, st.stage, r, st.fn)
		if res.passed {
			continue
		}
		if ctx.Err() != nil {
			return s.timedOut(ctx, logger, sub, st.stage, started)
		}
		outcome, result := failedOutcome(st.stage, res)
		s.finish(ctx, logger, sub, outcome, result, started)
		return outcome
	}

	outcome := Outcome{Success: true, Message: MsgReadyForReview, Stage: StageDone}
	s.finish(ctx, logger, sub, outcome, resultPassed, started)
	return outcome
}

// runStage runs fn with panic recovery and logs the stage start and result.
func (s *Service) runStage(ctx context.Context, logger *slog.Logger, stage Stage, r *run, fn stageFunc) (res stageResult) {
	logger.InfoContext(ctx, "stage started", "stage", string(stage))
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.metrics.IncPanic(stage)
			logger.ErrorContext(ctx, "stage panicked",
				"stage", string(stage),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res = stageResult{failure: dErrors.CodeInternal, message: "internal error"}
		}
		elapsed := time.Since(start)
		s.metrics.ObserveStage(stage, elapsed)
		logStageResult(ctx, logger, stage, res, elapsed)
	}()
	return fn(ctx, r)
}

func logStageResult(ctx context.Context, logger *slog.Logger, stage Stage, res stageResult, elapsed time.Duration) {
	attrs := append([]any{"stage", string(stage), "duration_ms", elapsed.Milliseconds()}, res.attrs...)
	switch {
	case res.passed:
		logger.InfoContext(ctx, "stage passed", attrs...)
	case isInfrastructure(res.failure):
		attrs = append(attrs, "failure", string(res.failure), "reason", res.message)
		logger.ErrorContext(ctx, "stage failed", attrs...)
	default:
		attrs = append(attrs, "failure", string(res.failure), "reason", res.message)
		logger.WarnContext(ctx, "stage rejected", attrs...)
	}
}

// =============================================================================
// Stages
// =============================================================================

func (s *Service) analyzePrimary(ctx context.Context, r *run) stageResult {
	img, res, ok := s.resolve(r.sub.FrontRef)
	if !ok {
		return res
	}
	r.front = img
	return s.analyze(ctx, r, img, document.TypePrimary)
}

func (s *Service) analyzeSecondary(ctx context.Context, r *run) stageResult {
	img, res, ok := s.resolve(r.sub.BackRef)
	if !ok {
		return res
	}
	r.back = img
	return s.analyze(ctx, r, img, document.TypeSecondary)
}

func (s *Service) analyze(ctx context.Context, r *run, img *asset.Image, requested document.Type) stageResult {
	result := s.analyzer.Analyze(ctx, img, requested)
	r.logger.DebugContext(ctx, "extracted text",
		"requested_type", requested.String(),
		"text", result.DetectedText,
	)
	return stageResult{
		passed:  result.Success,
		failure: failureOf(result.Success, result.Failure),
		message: result.ErrorMessage,
		attrs: []any{
			"confidence", result.Confidence,
			"requested_type", requested.String(),
			"detected_type", result.Classification.Detected.String(),
			"document_type", result.DocumentType.String(),
			"text_length", len([]rune(result.DetectedText)),
			"has_face", result.HasFace,
			"matched_keywords", result.Classification.MatchedKeywords,
			"language", result.Classification.Language,
		},
	}
}

func (s *Service) compareFaces(ctx context.Context, r *run) stageResult {
	img, res, ok := s.resolve(r.sub.SelfieRef)
	if !ok {
		return res
	}
	r.selfie = img
	result := s.comparator.Compare(ctx, r.selfie, r.front)
	return stageResult{
		passed:  result.Success,
		failure: failureOf(result.Success, result.Failure),
		message: result.ErrorMessage,
		attrs:   []any{"confidence", result.Confidence, "matched", result.Matched},
	}
}

func (s *Service) enqueue(ctx context.Context, r *run) stageResult {
	if s.enqueuer.Enqueue(ctx, r.sub.moderation()) {
		return stageResult{passed: true}
	}
	return stageResult{failure: dErrors.CodeUnavailable, message: "could not queue submission for review"}
}

// resolve turns a reference into an image. Resolution does no I/O; a failure means the
// reference itself is unusable.
func (s *Service) resolve(ref string) (*asset.Image, stageResult, bool) {
	img, err := s.resolver.Resolve(ref)
	if err != nil {
		code := dErrors.CodeOf(err)
		if !code.Retryable() {
			code = dErrors.CodeNotFound
		}
		return nil, stageResult{failure: code, message: document.MsgImageNotFound, attrs: []any{"error", err}}, false
	}
	return img, stageResult{}, true
}

// =============================================================================
// Outcomes
// =============================================================================

func failureOf(success bool, code dErrors.Code) dErrors.Code {
	if success {
		return ""
	}
	return code
}

func isInfrastructure(code dErrors.Code) bool {
	return code.Retryable() || code == dErrors.CodeInternal
}

// failedOutcome maps a failed stage to the user message: rejections carry the
// component's message, infrastructure failures a generic retry hint.
func failedOutcome(stage Stage, res stageResult) (Outcome, string) {
	if isInfrastructure(res.failure) {
		return stageFailure(stage, MsgTryAgainLater), resultFailed
	}
	msg := res.message
	if msg == "" {
		msg = "rejected"
	}
	return stageFailure(stage, msg), resultRejected
}

func (s *Service) timedOut(ctx context.Context, logger *slog.Logger, sub Submission, stage Stage, started time.Time) Outcome {
	logger.WarnContext(ctx, "submission timed out", "stage", string(stage), "error", ctx.Err())
	outcome := Outcome{Message: MsgTimedOut, Stage: stage}
	s.finish(ctx, logger, sub, outcome, resultTimedOut, started)
	return outcome
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, sub Submission, outcome Outcome, result string, started time.Time) {
	elapsed := time.Since(started)
	s.metrics.ObserveOutcome(outcome.Stage, result)
	s.metrics.ObservePipeline(elapsed)
	logger.InfoContext(ctx, "verification decided",
		"success", outcome.Success,
		"stage", string(outcome.Stage),
		"result", result,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.emitAudit(ctx, logger, sub, outcome, result)
}

func (s *Service) emitAudit(ctx context.Context, logger *slog.Logger, sub Submission, outcome Outcome, result string) {
	if s.auditor == nil {
		return
	}
	decision := audit.DecisionRejected
	switch result {
	case resultPassed:
		decision = audit.DecisionAccepted
	case resultFailed, resultTimedOut:
		decision = audit.DecisionFailed
	}
	event := audit.Event{
		UserID:        sub.UserID,
		SubmissionID:  sub.ID,
		Action:        string(audit.EventVerificationDecided),
		Stage:         string(outcome.Stage),
		Decision:      decision,
		Reason:        outcome.Message,
		CorrelationID: requestcontext.CorrelationID(ctx),
	}
	// the pipeline context may already be expired
	if err := s.auditor.Emit(context.WithoutCancel(ctx), event); err != nil {
		logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
}
