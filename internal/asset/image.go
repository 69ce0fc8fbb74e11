// Package asset resolves image references into lazily loaded, read-only images.
//
// A reference is either a filesystem path or an s3://bucket/key URL. Bytes are fetched
// at most once per Image, on first use, and the pipeline never mutates or deletes the
// underlying object.
package asset

import (
	"context"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Loader fetches the raw bytes behind a reference.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Image is a referenced image whose bytes are loaded on first access.
// Safe for concurrent use.
type Image struct {
	ref    string
	loader Loader

	once sync.Once
	data []byte
	mime string
	err  error
}

// NewImage returns an Image backed by loader.
func NewImage(ref string, loader Loader) *Image {
	return &Image{ref: ref, loader: loader}
}

// FromBytes returns an already loaded Image.
func FromBytes(ref string, data []byte) *Image {
	img := &Image{ref: ref}
	img.once.Do(func() { img.setData(data) })
	return img
}

func (i *Image) Ref() string {
	if i == nil {
		return ""
	}
	return i.ref
}

// Bytes returns the image bytes, loading them on the first call. The first caller's
// context bounds the load; later callers share its result.
func (i *Image) Bytes(ctx context.Context) ([]byte, error) {
	if i == nil {
		return nil, errImageNotFound(nil)
	}
	i.once.Do(func() {
		if i.loader == nil {
			i.err = errImageNotFound(nil)
			return
		}
		data, err := i.loader.Load(ctx, i.ref)
		if err != nil {
			i.err = err
			return
		}
		i.setData(data)
	})
	return i.data, i.err
}

// MIME returns the sniffed MIME type, loading the bytes if needed.
func (i *Image) MIME(ctx context.Context) (string, error) {
	if _, err := i.Bytes(ctx); err != nil {
		return "", err
	}
	return i.mime, nil
}

// IsImage reports whether the sniffed type is an image/* type.
func (i *Image) IsImage(ctx context.Context) bool {
	m, err := i.MIME(ctx)
	return err == nil && strings.HasPrefix(m, "image/")
}

func (i *Image) setData(data []byte) {
	if len(data) == 0 {
		i.err = errImageNotFound(nil)
		return
	}
	i.data = data
	i.mime = mimetype.Detect(data).String()
}
