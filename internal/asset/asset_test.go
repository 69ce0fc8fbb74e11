package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/testutil"
)

type countingLoader struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (l *countingLoader) Load(context.Context, string) ([]byte, error) {
	l.calls.Add(1)
	return l.data, l.err
}

type AssetSuite struct {
	suite.Suite
	dir string
}

func TestAssetSuite(t *testing.T) {
	suite.Run(t, new(AssetSuite))
}

func (s *AssetSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

// =============================================================================
// Image loading
// =============================================================================

func (s *AssetSuite) TestImage_LoadsOnce() {
	loader := &countingLoader{data: testutil.PNG(s.T(), 8, 8)}
	img := NewImage("front.png", loader)

	for range 3 {
		data, err := img.Bytes(context.Background())
		s.Require().NoError(err)
		s.NotEmpty(data)
	}
	s.Equal(int32(1), loader.calls.Load())

	mime, err := img.MIME(context.Background())
	s.Require().NoError(err)
	s.Equal("image/png", mime)
	s.True(img.IsImage(context.Background()))
}

func (s *AssetSuite) TestImage_LoadErrorIsSticky() {
	loader := &countingLoader{err: errImageNotFound(nil)}
	img := NewImage("missing.png", loader)

	_, err1 := img.Bytes(context.Background())
	_, err2 := img.Bytes(context.Background())
	s.Error(err1)
	s.Equal(err1, err2)
	s.Equal(int32(1), loader.calls.Load())
}

func (s *AssetSuite) TestImage_NilAndEmpty() {
	var img *Image
	_, err := img.Bytes(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(img.Ref())

	_, err = FromBytes("empty", nil).Bytes(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AssetSuite) TestImage_NonImageBytes() {
	img := FromBytes("notes.txt", []byte("just some text, not a picture"))
	s.False(img.IsImage(context.Background()))
}

// =============================================================================
// Resolver
// =============================================================================

func (s *AssetSuite) TestResolve_File() {
	path := testutil.WriteFile(s.T(), s.dir, "front.jpg", testutil.JPEG(s.T(), 16, 16))

	img, err := NewResolver().Resolve(path)
	s.Require().NoError(err)
	s.Equal(path, img.Ref())
	s.True(img.IsImage(context.Background()))
}

func (s *AssetSuite) TestResolve_MissingFileFailsOnRead() {
	img, err := NewResolver().Resolve(filepath.Join(s.dir, "nope.png"))
	s.Require().NoError(err, "existence is checked lazily")

	_, err = img.Bytes(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal("image not found", dErrors.MessageOf(err, ""))
}

func (s *AssetSuite) TestResolve_InvalidReferences() {
	r := NewResolver()

	_, err := r.Resolve("   ")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = r.Resolve("s3://bucket/key.png")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "s3 disabled without loader")

	_, err = r.Resolve("https://example.com/a.png")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = NewResolver(WithS3(&countingLoader{})).Resolve("s3://bucket-only")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *AssetSuite) TestFileLoader_SizeCap() {
	path := testutil.WriteFile(s.T(), s.dir, "big.bin", bytes.Repeat([]byte{1}, 64))

	_, err := FileLoader{MaxBytes: 32}.Load(context.Background(), path)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrTooLarge)

	data, err := FileLoader{MaxBytes: 64}.Load(context.Background(), path)
	s.Require().NoError(err)
	s.Len(data, 64)
}

// =============================================================================
// S3
// =============================================================================

type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (s *AssetSuite) TestS3Loader() {
	png := testutil.PNG(s.T(), 10, 10)
	client := &fakeS3{objects: map[string][]byte{"uploads/u1/front.png": png}}
	r := NewResolver(WithS3(NewS3Loader(client, 1<<20)))

	s.Run("downloads object", func() {
		img, err := r.Resolve("s3://uploads/u1/front.png")
		s.Require().NoError(err)
		data, err := img.Bytes(context.Background())
		s.Require().NoError(err)
		s.Equal(png, data)
	})

	s.Run("missing object is not found", func() {
		img, err := r.Resolve("s3://uploads/u1/back.png")
		s.Require().NoError(err)
		_, err = img.Bytes(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("oversized object rejected before download", func() {
		_, err := NewS3Loader(client, 16).Load(context.Background(), "s3://uploads/u1/front.png")
		s.ErrorIs(err, sentinel.ErrTooLarge)
	})

	s.Run("transport failure is unavailable", func() {
		_, err := NewS3Loader(&fakeS3{err: errors.New("connection reset")}, 0).Load(context.Background(), "s3://uploads/x.png")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func TestParseS3Ref(t *testing.T) {
	bucket, key, err := ParseS3Ref("s3://docs/users/42/front.jpg")
	require.NoError(t, err)
	assert.Equal(t, "docs", bucket)
	assert.Equal(t, "users/42/front.jpg", key)

	for _, bad := range []string{"docs/front.jpg", "s3://", "s3://docs/", "s3:///key"} {
		_, _, err := ParseS3Ref(bad)
		assert.Error(t, err, bad)
	}
}
