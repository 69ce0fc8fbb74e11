package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docverify/internal/asset"
	"docverify/internal/ocr"
	dErrors "docverify/pkg/domain-errors"
)

// User-facing messages.
const (
	MsgImageNotFound = "image not found"
	MsgNotADocument  = "not a valid document: please send a clearer photo of an official document"
	MsgLowConfidence = "image is blurry or hard to read: please retake the photo in good lighting"
	msgTypeMismatch  = "wrong document side: expected the %s side but this looks like the %s side"
)

// AnalysisResult is the verdict for one document image.
type AnalysisResult struct {
	Success      bool
	Confidence   float64
	DetectedText string
	// DocumentType is the outward type: Unknown only on the not-a-document exit.
	DocumentType Type
	HasFace      bool
	ErrorMessage string
	// Failure categorizes an unsuccessful result: CodeNotFound, CodeDocumentRejected,
	// CodeUnavailable or CodeTimeout. Empty on success.
	Failure dErrors.Code
	// Classification is the raw keyword evidence, zero when classification did not run.
	Classification Classification
}

// TextExtractor recognizes text in an image.
type TextExtractor interface {
	Extract(ctx context.Context, img *asset.Image) (ocr.Extraction, error)
}

// Analyzer combines extraction and classification for one image.
type Analyzer struct {
	extractor  TextExtractor
	classifier *Classifier
	threshold  float64
	logger     *slog.Logger
}

type Option func(*Analyzer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

func NewAnalyzer(extractor TextExtractor, cfg Config, opts ...Option) (*Analyzer, error) {
	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{extractor: extractor, classifier: classifier, threshold: cfg.ConfidenceThreshold}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a, nil
}

// Analyze decides whether img is a plausible document of the requested type. Failures
// are returned as values; Analyze never returns an error.
func (a *Analyzer) Analyze(ctx context.Context, img *asset.Image, requested Type) AnalysisResult {
	// the asset must be readable
	if _, err := img.Bytes(ctx); err != nil {
		return AnalysisResult{ErrorMessage: MsgImageNotFound, Failure: loadFailure(err)}
	}

	// extraction failures become failed results
	extraction, err := a.extractor.Extract(ctx, img)
	if err != nil {
		return AnalysisResult{
			ErrorMessage: dErrors.MessageOf(err, "text recognition failed"),
			Failure:      extractionFailure(err),
		}
	}

	confidence := extraction.Confidence

	cls := a.classifier.Classify(extraction.Text, requested)
	a.logger.DebugContext(ctx, "document classified",
		"requested_type", requested.String(),
		"detected_type", cls.Detected.String(),
		"has_minimum_text", cls.HasMinimumText,
		"has_document_keyword", cls.HasDocumentKeyword,
		"matched_keywords", cls.MatchedKeywords,
		"language", cls.Language,
		"confidence", confidence,
		"text", extraction.Text,
	)

	// plausibility takes priority over confidence and type
	looksLikeDocument := cls.HasMinimumText && (cls.HasDocumentKeyword || cls.Detected != TypeUnknown)
	if !looksLikeDocument {
		return AnalysisResult{
			Confidence:     confidence,
			DetectedText:   extraction.Text,
			DocumentType:   TypeUnknown,
			ErrorMessage:   MsgNotADocument,
			Failure:        dErrors.CodeDocumentRejected,
			Classification: cls,
		}
	}

	// unknown gets the benefit of the doubt
	isCorrectType := cls.Detected == TypeUnknown || cls.Detected == requested

	success := confidence >= a.threshold && isCorrectType && looksLikeDocument

	result := AnalysisResult{
		Success:        success,
		Confidence:     confidence,
		DetectedText:   extraction.Text,
		DocumentType:   outwardType(cls.Detected, requested),
		HasFace:        requested == TypePrimary, // only the front carries a photo
		Classification: cls,
	}

	// a type mismatch is reported ahead of low confidence
	switch {
	case !isCorrectType:
		result.ErrorMessage = fmt.Sprintf(msgTypeMismatch, sideName(requested), sideName(cls.Detected))
		result.Failure = dErrors.CodeDocumentRejected
	case !success:
		result.ErrorMessage = MsgLowConfidence
		result.Failure = dErrors.CodeDocumentRejected
	}
	return result
}

func sideName(t Type) string {
	switch t {
	case TypePrimary:
		return "front (identity)"
	case TypeSecondary:
		return "back (CPF)"
	default:
		return "unknown"
	}
}

func loadFailure(err error) dErrors.Code {
	switch code := dErrors.CodeOf(err); code {
	case dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return code
	default:
		return dErrors.CodeNotFound
	}
}

func extractionFailure(err error) dErrors.Code {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.CodeTimeout
	}
	switch code := dErrors.CodeOf(err); code {
	case dErrors.CodeUnavailable, dErrors.CodeTimeout, dErrors.CodeNotFound:
		return code
	case dErrors.CodeInternal:
		return dErrors.CodeUnavailable
	default:
		return dErrors.CodeDocumentRejected
	}
}
