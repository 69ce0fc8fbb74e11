package face

import (
	"context"
	"fmt"
	"log/slog"

	"docverify/internal/asset"
	dErrors "docverify/pkg/domain-errors"
)

const (
	// NoFaceConfidence: the selfie rendered but showed no evidence of a face.
	NoFaceConfidence = 0.3
	// PresenceConfidence is the fixed score of PresenceMatcher.
	PresenceConfidence = 0.75

	MsgNoFaceInSelfie        = "no face detected in selfie"
	MsgNoFaceInDocument      = "no face detected in document photo"
	MsgSelfieNotFound        = "selfie image not found"
	MsgDocumentPhotoNotFound = "document image not found"
	MsgNoMatch               = "selfie does not match the document photo"
	msgMatcherUnavailable    = "face comparison unavailable"
)

// ComparisonResult is the verdict for one selfie/document pair. Matched implies Success.
type ComparisonResult struct {
	Success      bool
	Confidence   float64
	Matched      bool
	ErrorMessage string
	// Failure is CodeNotFound, CodeFaceRejected, CodeUnavailable or CodeTimeout when
	// Success is false.
	Failure dErrors.Code
}

// Matcher compares two faces. Only called once both images passed face presence.
type Matcher interface {
	Match(ctx context.Context, selfie, document *asset.Image) (ComparisonResult, error)
}

// PresenceMatcher reports a match for every pair. Placeholder for biometric matching:
// face presence has already been established when it runs.
type PresenceMatcher struct{}

func (PresenceMatcher) Match(context.Context, *asset.Image, *asset.Image) (ComparisonResult, error) {
	return ComparisonResult{Success: true, Matched: true, Confidence: PresenceConfidence}, nil
}

type Comparator struct {
	detector Detector
	matcher  Matcher
	logger   *slog.Logger
}

type ComparatorOption func(*Comparator)

func WithMatcher(m Matcher) ComparatorOption {
	return func(c *Comparator) {
		c.matcher = m
	}
}

func WithLogger(logger *slog.Logger) ComparatorOption {
	return func(c *Comparator) {
		c.logger = logger
	}
}

// NewComparator uses PresenceMatcher unless WithMatcher is given.
func NewComparator(detector Detector, opts ...ComparatorOption) *Comparator {
	c := &Comparator{detector: detector, matcher: PresenceMatcher{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Compare checks both the selfie and the document photo for a face and, if both have one,
// matches them. Never returns an error; failures are values.
func (c *Comparator) Compare(ctx context.Context, selfie, document *asset.Image) ComparisonResult {
	if _, err := selfie.Bytes(ctx); err != nil {
		return ComparisonResult{ErrorMessage: MsgSelfieNotFound, Failure: loadFailure(err)}
	}
	if _, err := document.Bytes(ctx); err != nil {
		return ComparisonResult{ErrorMessage: MsgDocumentPhotoNotFound, Failure: loadFailure(err)}
	}

	if !c.detector.HasFace(ctx, selfie) {
		return ComparisonResult{
			Confidence:   NoFaceConfidence,
			ErrorMessage: MsgNoFaceInSelfie,
			Failure:      dErrors.CodeFaceRejected,
		}
	}
	// Matched requires a face on the reference image too
	if !c.detector.HasFace(ctx, document) {
		return ComparisonResult{
			ErrorMessage: MsgNoFaceInDocument,
			Failure:      dErrors.CodeFaceRejected,
		}
	}

	result, err := c.match(ctx, selfie, document)
	if err != nil {
		c.logger.ErrorContext(ctx, "face matcher failed", "error", err)
		code := dErrors.CodeOf(err)
		if code != dErrors.CodeTimeout {
			code = dErrors.CodeUnavailable
		}
		return ComparisonResult{ErrorMessage: dErrors.MessageOf(err, msgMatcherUnavailable), Failure: code}
	}
	return normalize(result)
}

func (c *Comparator) match(ctx context.Context, selfie, document *asset.Image) (result ComparisonResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("face matcher panicked: %v", r))
		}
	}()
	return c.matcher.Match(ctx, selfie, document)
}

// normalize enforces Matched => Success and keeps confidence within 0..1.
func normalize(r ComparisonResult) ComparisonResult {
	r.Confidence = min(max(r.Confidence, 0), 1)
	if r.Matched {
		r.Success = true
	}
	if r.Success {
		r.ErrorMessage = ""
		r.Failure = ""
		return r
	}
	if r.ErrorMessage == "" {
		r.ErrorMessage = MsgNoMatch
	}
	if r.Failure == "" {
		r.Failure = dErrors.CodeFaceRejected
	}
	return r
}

func loadFailure(err error) dErrors.Code {
	switch code := dErrors.CodeOf(err); code {
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return code
	default:
		return dErrors.CodeNotFound
	}
}
