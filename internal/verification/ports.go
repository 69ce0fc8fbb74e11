package verification

import (
	"context"

	"docverify/internal/asset"
	"docverify/internal/document"
	"docverify/internal/face"
	"docverify/internal/moderation"
	audit "docverify/pkg/platform/audit"
)

// Ports consumed by the Service. *document.Analyzer, *face.Comparator,
// *moderation.Enqueuer and *asset.Resolver satisfy them.

type DocumentAnalyzer interface {
	Analyze(ctx context.Context, img *asset.Image, requested document.Type) document.AnalysisResult
}

type FaceComparator interface {
	Compare(ctx context.Context, selfie, document *asset.Image) face.ComparisonResult
}

type Enqueuer interface {
	Enqueue(ctx context.Context, sub moderation.Submission) bool
}

type ImageResolver interface {
	Resolve(ref string) (*asset.Image, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
