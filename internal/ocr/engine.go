// Package ocr extracts text and a normalized confidence from document images.
//
// The recognition engine is a strategy: Engine hands out single-use Sessions that the
// Extractor checks out exclusively, bounded by a semaphore, and always releases.
package ocr

import "context"

// Extraction is the text recognized in one image. Confidence is in [0,1].
type Extraction struct {
	Text       string
	Confidence float64
}

// Session is one exclusive checkout of an engine instance.
type Session interface {
	SetImage(data []byte) error
	Text() (string, error)
	// MeanConfidence is on the engine's native scale (0..100 for Tesseract).
	MeanConfidence() (float64, error)
	Close() error
}

// Engine creates sessions. Implementations must be safe for concurrent NewSession calls.
type Engine interface {
	NewSession(ctx context.Context) (Session, error)
}
