//go:build !tesseract

package tesseract

import (
	"context"
	"errors"

	"docverify/internal/ocr"
)

// ErrNotBuilt is returned by every session request in builds without the tesseract tag.
var ErrNotBuilt = errors.New("built without tesseract support (rebuild with -tags tesseract)")

// Available reports whether this build links Tesseract.
const Available = false

// Engine stands in for the cgo adapter so callers compile without Tesseract installed.
type Engine struct{}

func New(_, _ string) *Engine {
	return &Engine{}
}

func (e *Engine) NewSession(context.Context) (ocr.Session, error) {
	return nil, ErrNotBuilt
}
