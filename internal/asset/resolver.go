package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

const s3Scheme = "s3://"

// DefaultMaxBytes caps a single image read.
const DefaultMaxBytes int64 = 20 << 20

// Resolver maps references to Images using the loader for their scheme.
type Resolver struct {
	files Loader
	s3    Loader
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithS3 enables s3:// references.
func WithS3(loader Loader) Option {
	return func(r *Resolver) {
		r.s3 = loader
	}
}

// WithFileLoader replaces the default filesystem loader.
func WithFileLoader(loader Loader) Option {
	return func(r *Resolver) {
		r.files = loader
	}
}

// NewResolver returns a resolver reading local files with DefaultMaxBytes.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{files: FileLoader{MaxBytes: DefaultMaxBytes}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a lazily loaded Image. Only the reference syntax is checked here;
// existence is discovered on first read.
func (r *Resolver) Resolve(ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errImageNotFound(nil)
	}
	if strings.HasPrefix(ref, s3Scheme) {
		if r.s3 == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "s3 references are not enabled")
		}
		if _, _, err := ParseS3Ref(ref); err != nil {
			return nil, err
		}
		return NewImage(ref, r.s3), nil
	}
	if strings.Contains(ref, "://") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported image reference scheme")
	}
	return NewImage(ref, r.files), nil
}

// ParseS3Ref splits s3://bucket/key.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, s3Scheme)
	if !ok {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "not an s3 reference")
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "s3 reference must be s3://bucket/key")
	}
	return bucket, key, nil
}

// FileLoader reads local files up to MaxBytes.
type FileLoader struct {
	MaxBytes int64
}

func (l FileLoader) Load(_ context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errImageNotFound(sentinel.ErrNotFound)
		}
		return nil, errImageNotFound(err)
	}
	defer f.Close()

	return readCapped(f, l.MaxBytes)
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, errImageNotFound(err)
	}
	if int64(len(data)) > maxBytes {
		return nil, dErrors.Wrap(sentinel.ErrTooLarge, dErrors.CodeInvalidInput,
			fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	return data, nil
}

func errImageNotFound(cause error) error {
	if cause == nil {
		cause = sentinel.ErrNotFound
	}
	return dErrors.Wrap(cause, dErrors.CodeNotFound, "image not found")
}
