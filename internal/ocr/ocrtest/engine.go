// Package ocrtest provides a scriptable in-memory ocr.Engine for tests and demos.
package ocrtest

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"

	"docverify/internal/ocr"
)

// Result is what a session returns for one image.
type Result struct {
	Text       string
	Confidence float64 // engine scale, 0..100
	TextErr    error
	SetErr     error
	Panic      bool
}

// Engine maps image bytes to scripted results. Unknown images yield Default.
type Engine struct {
	mu      sync.Mutex
	results map[[32]byte]Result
	Default Result
	// SessionErr, when set, fails every NewSession call.
	SessionErr error

	Opened atomic.Int32
	Closed atomic.Int32
}

func NewEngine() *Engine {
	return &Engine{results: make(map[[32]byte]Result)}
}

// On scripts the result for an exact image payload.
func (e *Engine) On(image []byte, r Result) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[sha256.Sum256(image)] = r
	return e
}

func (e *Engine) NewSession(context.Context) (ocr.Session, error) {
	if e.SessionErr != nil {
		return nil, e.SessionErr
	}
	e.Opened.Add(1)
	return &session{engine: e}, nil
}

// Leaked reports sessions opened but never closed.
func (e *Engine) Leaked() int32 {
	return e.Opened.Load() - e.Closed.Load()
}

type session struct {
	engine *Engine
	result *Result
}

func (s *session) SetImage(data []byte) error {
	s.engine.mu.Lock()
	r, ok := s.engine.results[sha256.Sum256(data)]
	s.engine.mu.Unlock()
	if !ok {
		r = s.engine.Default
	}
	if r.SetErr != nil {
		return r.SetErr
	}
	s.result = &r
	return nil
}

func (s *session) Text() (string, error) {
	if s.result == nil {
		return "", errors.New("no image set")
	}
	if s.result.Panic {
		panic("engine crashed")
	}
	return s.result.Text, s.result.TextErr
}

func (s *session) MeanConfidence() (float64, error) {
	if s.result == nil {
		return 0, errors.New("no image set")
	}
	return s.result.Confidence, nil
}

func (s *session) Close() error {
	s.engine.Closed.Add(1)
	return nil
}
