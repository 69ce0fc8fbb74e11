// Package face gates submissions on face presence and compares a selfie with the
// document photo through a pluggable Matcher.
package face

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"docverify/internal/asset"
)

// Detector reports whether an image shows a face. Implementations never fail: any
// problem with the image means no face.
type Detector interface {
	HasFace(ctx context.Context, img *asset.Image) bool
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, img *asset.Image) bool

func (f DetectorFunc) HasFace(ctx context.Context, img *asset.Image) bool {
	return f(ctx, img)
}

const (
	DefaultMinDimension = 64
	DefaultMaxPixels    = 50_000_000
	defaultCanvasSide   = 512
)

// RenderDetector assumes a face is present when the image decodes and renders at a
// usable size. It is a stand-in until a real detection model is plugged in.
type RenderDetector struct {
	minDimension int
	maxPixels    int
	canvasSide   int
	logger       *slog.Logger
}

type DetectorOption func(*RenderDetector)

func WithMinDimension(px int) DetectorOption {
	return func(d *RenderDetector) {
		if px > 0 {
			d.minDimension = px
		}
	}
}

// WithMaxPixels bounds width*height read from the header before a full decode.
func WithMaxPixels(n int) DetectorOption {
	return func(d *RenderDetector) {
		if n > 0 {
			d.maxPixels = n
		}
	}
}

func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *RenderDetector) {
		d.logger = logger
	}
}

func NewRenderDetector(opts ...DetectorOption) *RenderDetector {
	d := &RenderDetector{
		minDimension: DefaultMinDimension,
		maxPixels:    DefaultMaxPixels,
		canvasSide:   defaultCanvasSide,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

func (d *RenderDetector) HasFace(ctx context.Context, img *asset.Image) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WarnContext(ctx, "image render panicked", "ref", img.Ref(), "panic", r)
			ok = false
		}
	}()

	if !img.IsImage(ctx) {
		d.reject(ctx, img, "not an image")
		return false
	}
	data, err := img.Bytes(ctx)
	if err != nil {
		d.reject(ctx, img, "unreadable")
		return false
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		d.reject(ctx, img, "unsupported format")
		return false
	}
	if cfg.Width < d.minDimension || cfg.Height < d.minDimension {
		d.reject(ctx, img, "too small", "width", cfg.Width, "height", cfg.Height)
		return false
	}
	if cfg.Width*cfg.Height > d.maxPixels {
		d.reject(ctx, img, "too large", "width", cfg.Width, "height", cfg.Height)
		return false
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		d.reject(ctx, img, "decode failed", "format", format)
		return false
	}
	if !d.render(src) {
		d.reject(ctx, img, "render failed", "format", format)
		return false
	}
	return true
}

// render scales src into a bounded RGBA canvas and reports whether it produced pixels.
func (d *RenderDetector) render(src image.Image) bool {
	b := src.Bounds()
	if b.Empty() || b.Dx() < d.minDimension || b.Dy() < d.minDimension {
		return false
	}
	w, h := fit(b.Dx(), b.Dy(), d.canvasSide)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, b, draw.Src, nil)
	return len(canvas.Pix) > 0
}

func fit(w, h, side int) (int, int) {
	if w <= side && h <= side {
		return w, h
	}
	if w >= h {
		return side, max(1, h*side/w)
	}
	return max(1, w*side/h), side
}

func (d *RenderDetector) reject(ctx context.Context, img *asset.Image, reason string, args ...any) {
	d.logger.DebugContext(ctx, "no face assumed", append([]any{"ref", img.Ref(), "reason", reason}, args...)...)
}
