//go:build tesseract

// Package tesseract adapts gosseract (Tesseract via cgo) to ocr.Engine.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"docverify/internal/ocr"
)

// Engine opens one gosseract client per session with a single configured language.
type Engine struct {
	language       string
	tessdataPrefix string
}

// Available reports whether this build links Tesseract.
const Available = true

func New(language, tessdataPrefix string) *Engine {
	return &Engine{language: language, tessdataPrefix: tessdataPrefix}
}

func (e *Engine) NewSession(_ context.Context) (ocr.Session, error) {
	client := gosseract.NewClient()
	if e.tessdataPrefix != "" {
		client.SetTessdataPrefix(e.tessdataPrefix)
	}
	if err := client.SetLanguage(e.language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set tesseract language %q: %w", e.language, err)
	}
	return &session{client: client}, nil
}

type session struct {
	client *gosseract.Client
}

func (s *session) SetImage(data []byte) error {
	return s.client.SetImageFromBytes(data)
}

func (s *session) Text() (string, error) {
	return s.client.Text()
}

// MeanConfidence averages word-level confidences (0..100). No words yields 0.
func (s *session) MeanConfidence() (float64, error) {
	boxes, err := s.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return 0, err
	}
	if len(boxes) == 0 {
		return 0, nil
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes)), nil
}

func (s *session) Close() error {
	return s.client.Close()
}
